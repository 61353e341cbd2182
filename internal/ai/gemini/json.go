package gemini

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jobsieve/jobsieve/internal/ai"
	"github.com/jobsieve/jobsieve/internal/utils"
)

const jsonSystemInstruction = "You are a useful assistant. Output valid JSON."

// jsonCall runs the dual-strategy call shared by the extraction and matching
// stages: first a schema-constrained request, then a plain completion
// instructed to emit strict JSON. Only a failure of both calls is an error;
// malformed output from the fallback is the caller's problem, because the
// degrade-to-empty policy lives with the stage, not the transport.
func jsonCall(ctx context.Context, gen ai.Generator, logger *zap.Logger, maxLogLen int, prompt, fallbackHint string, schema *genai.Schema) (string, error) {
	logger.Debug("model request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, maxLogLen)),
	)

	raw, err := gen.GenerateStructured(ctx, prompt, schema)
	if err != nil {
		logger.Debug("structured output call failed, falling back to json mode", zap.Error(err))

		raw, err = gen.GenerateText(ctx, jsonSystemInstruction, prompt+"\n\n"+fallbackHint)
		if err != nil {
			return "", err
		}
	}

	logger.Debug("model response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, maxLogLen)),
	)

	return extractJSON(raw), nil
}

// extractJSON strips markdown code fences that local models like to wrap
// around JSON payloads.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
