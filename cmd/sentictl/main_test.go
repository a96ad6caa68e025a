package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		_, _ = w.Write([]byte(`{"text":"всё отлично","sentiment":"positive","confidence":0.875}`))
	}))
	defer server.Close()

	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--api", server.URL, "analyze", "--user", "12", "всё", "отлично"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "☀️ Позитивная")
	assert.Contains(t, out.String(), "87.5%")
}

func TestStatsCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_requests":2,"positive":1,"negative":1}`))
	}))
	defer server.Close()

	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--api", server.URL, "stats"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Всего запросов: 2")
}
