package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/analysis/markdown"
	"github.com/zhouzirui/z-wellness/backend/internal/config"
	"github.com/zhouzirui/z-wellness/backend/internal/logging"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
	"github.com/zhouzirui/z-wellness/backend/internal/model/persona"
	speechmodel "github.com/zhouzirui/z-wellness/backend/internal/model/speech"
	"github.com/zhouzirui/z-wellness/backend/internal/service/ai"
	"github.com/zhouzirui/z-wellness/backend/internal/service/speech"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("配置加载失败")
	}
	logger := logging.New(cfg.Log)
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("无法加载 .env，改用系统环境变量")
	}

	mode := flag.String("mode", "", "测试模式: ask, ritual, plan 或 tts")
	text := flag.String("text", "", "问题 / 仪式偏好 / 待合成文本")
	personaFlag := flag.String("persona", "", "ask 模式使用的 persona，默认 holistic")
	image := flag.String("image", "", "ask 模式附带的图片 data URI")
	goals := flag.String("goals", "", "plan 模式的健康目标")
	prefs := flag.String("prefs", "", "plan 模式的偏好")
	lifestyle := flag.String("lifestyle", "", "plan 模式的生活方式")
	voice := flag.String("voice", "", "TTS 声音 ID 或 persona 别名")
	outputPath := flag.String("out", "", "TTS 输出音频文件路径 (默认根据格式自动生成)")
	plain := flag.Bool("plain", false, "输出不带 ANSI 样式")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "ask", "ritual", "plan":
		svc := mustAIService(ctx, cfg, logger)
		var out string
		switch *mode {
		case "ask":
			out, err = runAsk(ctx, svc, *text, *image, *personaFlag)
		case "ritual":
			out, err = runRitual(ctx, svc, *text)
		case "plan":
			out, err = runPlan(ctx, svc, flow.PlanRequest{HealthGoals: *goals, Preferences: *prefs, Lifestyle: *lifestyle})
		}
		if err != nil {
			logger.Fatal().Err(err).Str("mode", *mode).Msg("调用失败")
		}
		fmt.Println(render(out, !*plain))
	case "tts":
		runTTS(ctx, cfg, logger, *text, *voice, *outputPath)
	default:
		flag.Usage()
		logger.Fatal().Msg("请通过 -mode=ask|ritual|plan|tts 指定测试模式")
	}
}

func mustAIService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *ai.Service {
	if !cfg.AI.Enabled() {
		logger.Fatal().Str("provider", cfg.AI.Provider).Msg("AI 未配置，请检查 ARK_* 或 GEMINI_* 环境变量")
	}
	prompts, err := ai.LoadPrompts(cfg.AI.PromptsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("提示词加载失败")
	}
	flows, err := ai.NewFlowsFromConfig(ctx, cfg.AI, prompts)
	if err != nil {
		logger.Fatal().Err(err).Msg("AI 初始化失败")
	}
	return ai.NewService(cfg.AI.Provider, flows, logger)
}

func runAsk(ctx context.Context, svc *ai.Service, question, image, selector string) (string, error) {
	id, err := persona.Parse(selector)
	if err != nil {
		return "", err
	}
	resp, err := svc.AnswerQuestion(ctx, flow.AnswerRequest{Question: question, ImageDataURI: image, Persona: id})
	if err != nil {
		return "", err
	}
	if len(resp.References) == 0 {
		return resp.Answer, nil
	}
	return resp.Answer + "\n## References\n- " + strings.Join(resp.References, "\n- "), nil
}

func runRitual(ctx context.Context, svc *ai.Service, preferences string) (string, error) {
	resp, err := svc.GenerateRitual(ctx, flow.RitualRequest{Preferences: preferences})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n## Benefits\n%s\n## Traditions\n%s", resp.RitualDescription, resp.Benefits, resp.TraditionsInvolved), nil
}

func runPlan(ctx context.Context, svc *ai.Service, req flow.PlanRequest) (string, error) {
	resp, err := svc.GenerateDailyPlan(ctx, req)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, section := range []flow.PlanSection{resp.Morning, resp.Afternoon, resp.Evening} {
		fmt.Fprintf(&b, "## %s\n%s\n", section.Title, section.Description)
		for _, activity := range section.Activities {
			fmt.Fprintf(&b, "- %s\n", activity)
		}
	}
	return b.String(), nil
}

func render(text string, ansi bool) string {
	return markdown.RenderText(markdown.ParseAll(text), ansi)
}

func runTTS(ctx context.Context, cfg *config.Config, logger zerolog.Logger, text, voice, outputPath string) {
	if !cfg.Speech.Enabled {
		logger.Fatal().Msg("语音服务未启用，请先在环境变量中配置 SPEECH_* 或 GEMINI_API_KEY")
	}

	synth, err := speech.NewSynthesizer(ctx, cfg.Speech.Provider, cfg.Speech.ClientConfig(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("语音服务初始化失败")
	}
	svc := speech.NewService(synth, 0, logger)

	sessionID := fmt.Sprintf("manual-%d", time.Now().UnixNano())
	resp, err := svc.Synthesize(ctx, &speechmodel.TTSRequest{SessionID: sessionID, Text: text, Voice: voice})
	if err != nil {
		logger.Fatal().Err(err).Msg("TTS 调用失败")
	}

	if outputPath == "" {
		outputPath = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), resp.Format)
	}
	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		logger.Fatal().Err(err).Msg("写入音频文件失败")
	}

	logger.Info().Str("file", outputPath).Int64("duration_ms", resp.Duration).Str("provider", synth.Name()).Msg("TTS 合成成功")
}
