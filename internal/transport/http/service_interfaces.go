package http

import (
	"context"

	"canmlio/internal/decode"
	"canmlio/internal/services"
)

// ConvertServiceInterface is the conversion surface the handlers need.
type ConvertServiceInterface interface {
	Convert(ctx context.Context, req services.ConvertRequest, reporter decode.Reporter) (*services.ConvertResult, error)
}

// DictionaryServiceInterface is the inspection surface the handlers need.
type DictionaryServiceInterface interface {
	Inspect(ctx context.Context, sources []string, namespaced bool) (*services.DictionarySummary, error)
}
