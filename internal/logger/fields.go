package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Keys shared by every package that logs on behalf of an analysis run.
const (
	FieldProvider   = "ai_provider"
	FieldModel      = "ai_model"
	FieldStage      = "stage"
	FieldSubmission = "submission_id"
	FieldComponent  = "component"
)

// Pair is a key and value that only becomes a log field when both are set.
type Pair struct {
	Key   string
	Value string
}

// Fields turns pairs into zap string fields. Keys and values are trimmed;
// a pair blank on either side is skipped.
func Fields(pairs ...Pair) []zap.Field {
	out := make([]zap.Field, 0, len(pairs))
	for _, p := range pairs {
		key, value := strings.TrimSpace(p.Key), strings.TrimSpace(p.Value)
		if key == "" || value == "" {
			continue
		}
		out = append(out, zap.String(key, value))
	}

	return out
}

// With returns log enriched with fields. Callers may pass a nil logger, in
// which case a no-op one is used.
func With(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}

	return log.With(fields...)
}

// ProviderFields identifies the model backend. Unknown parts are left out.
func ProviderFields(provider, model string) []zap.Field {
	return Fields(Pair{FieldProvider, provider}, Pair{FieldModel, model})
}

// WithProvider is With(log, ProviderFields(provider, model)...).
func WithProvider(log *zap.Logger, provider, model string) *zap.Logger {
	return With(log, ProviderFields(provider, model)...)
}

// WithComponent names the subsystem (http, document, ...) emitting the lines.
func WithComponent(log *zap.Logger, name string) *zap.Logger {
	return With(log, Fields(Pair{FieldComponent, name})...)
}

// WithStage tags lines of one pipeline stage together with the model it runs on.
func WithStage(log *zap.Logger, stage, model string) *zap.Logger {
	return With(log, Fields(Pair{FieldStage, stage}, Pair{FieldModel, model})...)
}

// WithSubmission lets all lines of one submission be grepped by its id.
func WithSubmission(log *zap.Logger, id string) *zap.Logger {
	return With(log, Fields(Pair{FieldSubmission, id})...)
}
