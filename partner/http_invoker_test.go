// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package partner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/config"
)

func newInvoker(url string) Invoker {
	return NewHTTPInvoker(map[string]config.PartnerConfig{
		"billing": {BaseUrl: url, InvokeTimeout: time.Second},
	}, log.NewNopLogger())
}

func TestInvokeReturnsReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charge", r.URL.Path)
		assert.Equal(t, "i1", r.Header.Get(HeaderInstanceId))
		assert.Equal(t, "2", r.Header.Get(HeaderAttempt))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"amount":3}`, string(body))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	reply, err := newInvoker(server.URL).Invoke(context.Background(), Exchange{
		InstanceId: "i1",
		Partner:    "billing",
		Operation:  "charge",
		Request:    json.RawMessage(`{"amount":3}`),
		Attempt:    2,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(reply))
}

func TestInvokeFailureTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/garbled":
			_, _ = w.Write([]byte(`{not json`))
		}
	}))
	url := server.URL
	invoker := newInvoker(url)

	_, err := invoker.Invoke(context.Background(), Exchange{Partner: "billing", Operation: "broken", Attempt: 1})
	assert.Equal(t, FailureTypeOther, AsFailure(err).Type)

	_, err = invoker.Invoke(context.Background(), Exchange{Partner: "billing", Operation: "garbled", Attempt: 1})
	assert.Equal(t, FailureTypeFormatError, AsFailure(err).Type)

	server.Close()
	_, err = invoker.Invoke(context.Background(), Exchange{Partner: "billing", Operation: "broken", Attempt: 1})
	assert.Equal(t, FailureTypeCommunicationError, AsFailure(err).Type)

	_, err = invoker.Invoke(context.Background(), Exchange{Partner: "shipping", Operation: "x", Attempt: 1})
	assert.Equal(t, FailureTypeOther, AsFailure(err).Type)
}

func TestAsFailure(t *testing.T) {
	f := NewFailure(FailureTypeFormatError, "bad %v", "reply")
	assert.Same(t, f, AsFailure(f))
	assert.Equal(t, "FORMAT_ERROR: bad reply", f.Error())

	other := AsFailure(errors.New("boom"))
	assert.Equal(t, &Failure{Type: FailureTypeOther, Reason: "boom"}, other)
}

func TestFixPartnerUrl(t *testing.T) {
	t.Setenv("AUTO_FIX_LOCALHOST_PARTNER_URL", "host.docker.internal")
	assert.Equal(t, "http://host.docker.internal:8080/x", FixPartnerUrl("http://localhost:8080/x"))
}
