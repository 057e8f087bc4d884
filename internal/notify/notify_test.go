package notify

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/logger"
	"github.com/gea-smc/gea/internal/metrics"
	"github.com/gea-smc/gea/internal/record"
)

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []*mail.Msg
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.SMTP.Host = "smtp.example.org"
	cfg.SMTP.User = "avisos@example.org"
	cfg.SMTP.From = "avisos@example.org"
	cfg.SMTP.Password = "secreto"
	cfg.Notify.Recipient = "coordinacion@example.org"
	return cfg
}

func factoryFor(s Sender) ClientFactory {
	return func(config.SMTPConfig) (Sender, error) { return s, nil }
}

var at = time.Date(2024, 3, 5, 9, 7, 1, 0, time.Local)

func TestSubjectAndBody(t *testing.T) {
	assert.Equal(t, "Nuevo registro de Artículo capturado", Subject(record.Article))
	assert.Equal(t,
		"Se ha capturado un nuevo Tesis con el siguiente contenido:\n\nTítulo: X\n\nFecha de registro: 2024-03-05 09:07:01",
		Body(record.Thesis, "Título: X", at))
}

func TestNotify_Sends(t *testing.T) {
	sender := &fakeSender{}
	m := metrics.New()
	log := logger.NewBufferLogger()
	d := New(testConfig(), WithClientFactory(factoryFor(sender)), WithMetrics(m), WithLogger(log))

	require.True(t, d.Enabled())
	require.NoError(t, d.Notify(context.Background(), record.Conference, "Evento: X", at))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"Nuevo registro de Congreso capturado"}, msg.GetGenHeader(mail.HeaderSubject))

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"coordinacion@example.org"}, rcpts)

	from, err := msg.GetSender(false)
	require.NoError(t, err)
	assert.Contains(t, from, "avisos@example.org")

	parts := msg.GetParts()
	require.Len(t, parts, 1)
	body, err := parts[0].GetContent()
	require.NoError(t, err)
	assert.Contains(t, string(body), "Evento: X")
	assert.Contains(t, string(body), "Fecha de registro: 2024-03-05 09:07:01")

	n, err := testutil.GatherAndCount(m.Registry(), "gea_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, log.HasLevel("info"))
}

func TestNotify_Disabled(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no host", func(c *config.Config) { c.SMTP.Host = "" }},
		{"no recipient", func(c *config.Config) { c.Notify.Recipient = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			sender := &fakeSender{}
			d := New(cfg, WithClientFactory(factoryFor(sender)))

			assert.False(t, d.Enabled())
			require.NoError(t, d.Notify(context.Background(), record.Article, "x", at))
			assert.Empty(t, sender.sent)
		})
	}

	var nilDispatcher *Dispatcher
	assert.False(t, nilDispatcher.Enabled())
}

func TestNotify_SendFailure(t *testing.T) {
	sender := &fakeSender{err: stderrors.New("535 authentication failed")}
	log := logger.NewBufferLogger()
	d := New(testConfig(), WithClientFactory(factoryFor(sender)), WithLogger(log))

	err := d.Notify(context.Background(), record.Funding, "Proyecto: X", at)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotify))
	assert.Contains(t, err.Error(), "smtp.example.org")
	assert.True(t, log.HasLevel("warn"))
}

func TestNotify_FactoryFailure(t *testing.T) {
	d := New(testConfig(), WithClientFactory(func(config.SMTPConfig) (Sender, error) {
		return nil, stderrors.New("bad option")
	}))

	err := d.Notify(context.Background(), record.Article, "x", at)
	assert.True(t, errors.IsCode(err, errors.ErrNotify))
}

func TestNotify_InvalidAddresses(t *testing.T) {
	cfg := testConfig()
	cfg.Notify.Recipient = "not an address"
	sender := &fakeSender{}

	err := New(cfg, WithClientFactory(factoryFor(sender))).Notify(context.Background(), record.Article, "x", at)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotify))
	assert.Empty(t, sender.sent)
}

func TestNotify_UnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := testConfig()
	cfg.SMTP.Host = "127.0.0.1"
	cfg.SMTP.Port = port
	cfg.SMTP.Timeout = 2 * time.Second

	start := time.Now()
	err = New(cfg).Notify(context.Background(), record.Article, "x", at)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotify))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewClient(t *testing.T) {
	cfg := testConfig().SMTP
	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c)

	cfg.SSL = true
	cfg.Port = 465
	c, err = NewClient(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewClient(config.SMTPConfig{})
	assert.Error(t, err)
}

func TestBody_KeepsContentVerbatim(t *testing.T) {
	content := "línea 1\nit's `x` $(y)"
	assert.True(t, strings.Contains(Body(record.Article, content, at), content))
}
