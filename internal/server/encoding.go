// ABOUTME: Response encoding for the metadata API
// ABOUTME: JSON by default, MessagePack and protobuf on request

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/metadata-service/internal/logger"
	"github.com/nainya/metadata-service/pkg/errs"
)

// Media types
const (
	ContentTypeJSON     = "application/json"
	ContentTypeMsgpack  = "application/x-msgpack"
	ContentTypeProtobuf = "application/x-protobuf"
)

// negotiate picks the response media type from the Accept header
func negotiate(r *http.Request) string {
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, ContentTypeMsgpack):
		return ContentTypeMsgpack
	case strings.Contains(accept, ContentTypeProtobuf):
		return ContentTypeProtobuf
	default:
		return ContentTypeJSON
	}
}

// encode renders v in the given media type
func encode(contentType string, v any) ([]byte, error) {
	switch contentType {
	case ContentTypeMsgpack:
		generic, err := toGeneric(v)
		if err != nil {
			return nil, err
		}
		return msgpack.Marshal(generic)
	case ContentTypeProtobuf:
		generic, err := toGeneric(v)
		if err != nil {
			return nil, err
		}
		value, err := structpb.NewValue(generic)
		if err != nil {
			return nil, fmt.Errorf("failed to convert response to protobuf: %w", err)
		}
		return proto.Marshal(value)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// toGeneric converts v to the value its JSON form decodes to, with
// integral numbers kept as int64.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return normalizeNumbers(generic), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	default:
		return v
	}
}

// writeResponse encodes v in the negotiated media type
func writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	contentType := negotiate(r)
	data, err := encode(contentType, v)
	if err != nil {
		writeError(w, r, errs.Wrap(err, "failed to encode response"))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(data)
}

// statusFor maps an error to its HTTP status code
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	switch errs.KindOf(err) {
	case errs.MalformedVersion, errs.RequestValidation, errs.PathNotFound:
		return http.StatusBadRequest
	case errs.NotFound, errs.StaleDraft:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes its payload. Client errors log at warn,
// server errors at error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed").Err(err).Str("url", r.URL.String()).Send()
	} else {
		log.Warn("request rejected").Err(err).Str("url", r.URL.String()).Send()
	}

	payload := errs.ToPayload(err)
	payload.RequestID = RequestIDFromContext(r.Context())
	contentType := negotiate(r)
	data, encErr := encode(contentType, payload)
	if encErr != nil {
		contentType = ContentTypeJSON
		data, _ = json.Marshal(payload)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(data)
}
