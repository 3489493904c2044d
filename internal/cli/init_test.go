package cli

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"lana/internal/config"
	"lana/internal/core"

	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct{ subjects []string }

func (r *recordingPublisher) PublishNotification(_ context.Context, _ int64, subject, _ string) error {
	r.subjects = append(r.subjects, subject)
	return nil
}

func TestSetupLoggerLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("debug", "test")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.Equal(t, "test", logger.Component())

	logger = SetupLogger("bogus", "test")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestChannelConfigMapping(t *testing.T) {
	cfg := &config.Config{
		SMTPHost:         "smtp.example.com",
		SMTPPort:         2525,
		SMTPUsername:     "u",
		SMTPPassword:     "p",
		SMTPTimeout:      10 * time.Second,
		EmailFrom:        "ledger@example.com",
		TwilioAccountSID: "AC1",
		TwilioAuthToken:  "tok",
		TwilioFrom:       "+15550000",
	}

	ec := EmailConfig(cfg)
	assert.Equal(t, "smtp.example.com", ec.Host)
	assert.Equal(t, 2525, ec.Port)
	assert.Equal(t, 10*time.Second, ec.Timeout)
	assert.True(t, ec.Enabled())

	sc := SMSConfig(cfg)
	assert.Equal(t, "AC1", sc.AccountSID)
	assert.True(t, sc.Enabled())
}

func TestDispatcherWithOnlyEventChannel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	pub := &recordingPublisher{}
	d := Dispatcher(SetupLogger("error", "test"), &config.Config{}, pub)
	d.Notify(context.Background(), core.User{ID: 1, Email: "a@example.com"}, "subject", "body")
	assert.Equal(t, []string{"subject"}, pub.subjects)
}

func TestInitAMQPDisabled(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	assert.Nil(t, InitAMQP(SetupLogger("error", "test"), &config.Config{SchedulerLeaseTTL: time.Minute}))
}
