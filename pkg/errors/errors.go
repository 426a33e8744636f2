// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package errors

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeCorpusItemNotFound       Code = "corpus.item.get.not_found"
	CodeCorpusItemInvalid        Code = "corpus.item.put.invalid_input"
	CodeCorpusIterateFailure     Code = "corpus.iterate.failure"
	CodeCorpusDatabaseFailure    Code = "corpus.database.failure"
	CodeCorpusBackendUnsupported Code = "corpus.backend.unsupported"

	CodeIndexVectorInvalid      Code = "index.vector.invalid_input"
	CodeIndexQueryFailure       Code = "index.query.failure"
	CodeIndexDatabaseFailure    Code = "index.database.failure"
	CodeIndexBackendUnsupported Code = "index.backend.unsupported"
	CodeIndexMetricUnsupported  Code = "index.metric.unsupported"

	CodeEmbedInputInvalid    Code = "embed.input.invalid_input"
	CodeEmbedInputTooLong    Code = "embed.input.too_long"
	CodeEmbedResponseInvalid Code = "embed.response.invalid"
	CodeEmbedUpstreamFailure Code = "embed.upstream.failure"
	CodeEmbedTimeout         Code = "embed.timeout"

	CodeRetrieveEmbedFailure  Code = "retrieve.embed.failure"
	CodeRetrieveIndexFailure  Code = "retrieve.index.failure"
	CodeRetrieveCorpusFailure Code = "retrieve.corpus.failure"
	CodeRetrieveTimeout       Code = "retrieve.timeout"

	CodeFilterUnknownKey   Code = "rank.filter.unknown_key"
	CodeFilterTypeMismatch Code = "rank.filter.type_mismatch"
	CodeFilterValueInvalid Code = "rank.filter.invalid_value"
	CodeRankWeightsInvalid Code = "rank.weights.invalid_value"
	CodeRankRequestInvalid Code = "rank.request.invalid_input"

	CodeGenerateUpstreamFailure Code = "generate.upstream.failure"
	CodeGenerateResponseEmpty   Code = "generate.response.empty"
	CodeGenerateTimeout         Code = "generate.timeout"

	CodePipelineRequestInvalid Code = "pipeline.request.invalid_input"
	CodePipelineStageFailure   Code = "pipeline.stage.failure"

	CodeProviderRequestInvalid  Code = "provider.request.invalid"
	CodeProviderResponseInvalid Code = "provider.response.invalid"
	CodeProviderUpstreamFailure Code = "provider.upstream.failure"
	CodeProviderNotFound        Code = "provider.registry.not_found"
	CodeProviderAllUnavailable  Code = "provider.routing.all_unavailable"
	CodeProviderNoDefault       Code = "provider.routing.no_default"
	CodeProviderInvalidModelRef Code = "provider.routing.invalid_model_ref"
	CodeProviderKeyUnauthorized Code = "provider.key.unauthorized"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigValidateMissingField Code = "config.validate.missing_field"
	CodeConfigAlreadyExists        Code = "config.init.already_exists"

	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretURIInvalid     Code = "secret.uri.invalid_format"
	CodeSecretInvalidInput   Code = "secret.invalid_input"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeServerRequestInvalid   Code = "server.request.invalid"
	CodeServerAuthUnauthorized Code = "server.auth.unauthorized"
	CodeServerAuthForbidden    Code = "server.auth.forbidden"
	CodeServerInternalFailure  Code = "server.internal.failure"
	CodeServerEntityNotFound   Code = "server.entity.not_found"
	CodeServerConfigInvalid    Code = "server.config.invalid"
	CodeServerStartFailure     Code = "server.start.failure"
	CodeServerShutdownFailure  Code = "server.shutdown.failure"

	CodeCLIGatewayNotRunning Code = "cli.gateway.not_running"
	CodeCLIRequestFailure    Code = "cli.request.failure"
	CodeCLIResponseInvalid   Code = "cli.response.invalid"
	CodeCLISetupFailure      Code = "cli.setup.failure"
	CodeCLIInputInvalid      Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldItemID(value string) Attr {
	return Field("item_id", value)
}

func FieldRequestID(value string) Attr {
	return Field("request_id", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func FieldStage(value string) Attr {
	return Field("stage", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(string(code)).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(string(code)).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(string(code)).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(string(code)).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(string(code)).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	return Code(oopsErr.Code())
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format" || r == "too_long"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// IsEmbedding reports whether err originated in the embedding stage.
func IsEmbedding(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "embed.")
}

// IsRetrieval reports whether err originated in the retrieval stage.
func IsRetrieval(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "retrieve.")
}

// IsInvalidFilter reports whether err was caused by a malformed or unknown
// filter constraint.
func IsInvalidFilter(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "rank.filter.")
}

// IsGeneration reports whether err originated in the explanation stage.
// Generation errors are degraded by the pipeline, never surfaced to callers.
func IsGeneration(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "generate.")
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidFilter(err):
		return http.StatusBadRequest
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(string(CodeServerInternalFailure)).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
