package overseerr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"reelsync/internal/config"
	"reelsync/internal/logging"
	"reelsync/internal/services"
)

// Report summarizes one provisioning run.
type Report struct {
	MediaUsers int
	Imported   int
	Resets     int
	Failures   int
}

// Provisioner imports missing media-server accounts into the request
// manager and resets their passwords from the shared secret file.
type Provisioner struct {
	cfg    *config.Config
	client *Client
	logger *slog.Logger
	dryRun bool
}

// NewProvisioner wires a provisioner. A nil client builds the default one
// from configuration.
func NewProvisioner(cfg *config.Config, client *Client, logger *slog.Logger, dryRun bool) (*Provisioner, error) {
	base := logging.NewComponentLogger(logger, "users")
	if client == nil {
		var err error
		client, err = New(cfg.Users, nil, cfg.RequestTimeout(), base)
		if err != nil {
			return nil, err
		}
	}
	return &Provisioner{cfg: cfg, client: client, logger: base, dryRun: dryRun}, nil
}

// Run performs one provisioning pass.
func (p *Provisioner) Run(ctx context.Context) (*Report, error) {
	if p.cfg.Users.URL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "users", "initialize", "users.url is not configured", nil)
	}
	password, err := p.sharedSecret()
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, p.logger)

	if err := p.waitReady(ctx); err != nil {
		return nil, err
	}
	if err := p.client.Login(ctx, p.cfg.Users.Email, password); err != nil {
		return nil, err
	}

	existing, err := p.client.Users(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, user := range existing {
		if user.JellyfinID != "" {
			known[strings.ToLower(user.JellyfinID)] = struct{}{}
		}
		for _, name := range []string{user.Username, user.DisplayName} {
			if name != "" {
				known[strings.ToLower(name)] = struct{}{}
			}
		}
	}

	mediaUsers, err := p.client.MediaServerUsers(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{MediaUsers: len(mediaUsers)}

	var missing []string
	for _, user := range mediaUsers {
		if _, ok := known[strings.ToLower(user.ID)]; ok {
			continue
		}
		if _, ok := known[strings.ToLower(user.Username)]; ok {
			continue
		}
		missing = append(missing, user.ID)
		logger.Info("media server user missing", logging.String("username", user.Username))
	}
	if len(missing) == 0 {
		logger.Info("all media server users present")
		return report, nil
	}
	if p.dryRun {
		logger.Info("would import users",
			logging.Int("count", len(missing)),
			logging.Bool(logging.FieldDryRun, true),
		)
		return report, nil
	}

	created, err := p.client.ImportUsers(ctx, missing)
	if err != nil {
		return report, err
	}
	report.Imported = len(created)

	for _, user := range created {
		if err := p.client.SetPassword(ctx, user.ID, password); err != nil {
			report.Failures++
			logger.Warn("password reset failed",
				logging.String("username", user.DisplayName),
				logging.Error(err),
			)
			continue
		}
		report.Resets++
	}
	logger.Info("provisioning finished",
		logging.Int("imported", report.Imported),
		logging.Int("resets", report.Resets),
		logging.Int("failures", report.Failures),
	)
	return report, nil
}

func (p *Provisioner) sharedSecret() (string, error) {
	path := p.cfg.Users.PasswordFile
	if path == "" {
		return "", services.Wrap(services.ErrConfiguration, "users", "read secret", "users.password_file is not configured", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "users", "read secret", path, err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", services.Wrap(services.ErrConfiguration, "users", "read secret", "shared secret file is empty", nil)
	}
	return secret, nil
}

func (p *Provisioner) waitReady(ctx context.Context) error {
	interval := p.cfg.StatusPollInterval()
	maxAttempts := p.cfg.Workflow.StatusPollMaxAttempts
	logger := logging.WithContext(ctx, p.logger)

	start := time.Now()
	for attempt := 1; ; attempt++ {
		err := p.client.Status(ctx)
		if err == nil {
			return nil
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return services.Wrap(services.ErrConnectivity, "users", "wait ready",
				fmt.Sprintf("request manager not ready after %d attempts", attempt), err)
		}
		logger.Info("request manager not ready",
			logging.Duration("waited", time.Since(start).Round(time.Second)),
			logging.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
