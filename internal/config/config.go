package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr string

	// DocRoot is where the interpolated HTML lives. Empty disables page
	// serving; the form endpoints still work for an external front end.
	DocRoot string

	// Admin identity. Injected, never stored in the users table.
	AdminUser         string
	AdminPasswordSHA1 string // 40 hex chars, sha1 of the admin password

	// Store
	SessionDB string // filesystem path of the sqlite database

	// Password hashing pepper, per deployment.
	Confounder string

	// Session lifetimes
	TimeoutIdle         time.Duration
	TimeoutAbsolute     time.Duration
	TimeoutAnonAbsolute time.Duration

	// Outbound email
	EmailFrom          string
	EmailHelo          string
	EmailSMTPHost      string
	EmailSMTPPort      int
	EmailSMTPUser      string
	EmailSMTPPassword  string
	EmailTitle         string
	EmailContactPerson string
	EmailConfirmURL    string
	EmailExpire        time.Duration // unverified-account GC threshold
	EmailFake          bool          // log instead of SMTP (dev)

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "dev"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DocRoot:  os.Getenv("DOC_ROOT"),
	}

	// Required values. The subsystem cannot operate without an admin
	// identity and a database path, so fail fast here rather than limping
	// into a broken state.
	cfg.AdminUser = os.Getenv("ADMIN_USER")
	if cfg.AdminUser == "" {
		return nil, fmt.Errorf("missing required env var: ADMIN_USER")
	}
	cfg.AdminPasswordSHA1 = os.Getenv("ADMIN_PASSWORD_SHA1")
	if cfg.AdminPasswordSHA1 == "" {
		return nil, fmt.Errorf("missing required env var: ADMIN_PASSWORD_SHA1")
	}
	if len(cfg.AdminPasswordSHA1) != 40 {
		return nil, fmt.Errorf("ADMIN_PASSWORD_SHA1 must be 40 hex chars, got %d", len(cfg.AdminPasswordSHA1))
	}
	cfg.SessionDB = os.Getenv("SESSION_DB")
	if cfg.SessionDB == "" {
		return nil, fmt.Errorf("missing required env var: SESSION_DB")
	}

	cfg.Confounder = os.Getenv("CONFOUNDER")

	// Lifetime knobs, defaults matching long-deployed installs.
	var err error
	if cfg.TimeoutIdle, err = getSeconds("TIMEOUT_IDLE_SECS", 600); err != nil {
		return nil, err
	}
	if cfg.TimeoutAbsolute, err = getSeconds("TIMEOUT_ABSOLUTE_SECS", 36000); err != nil {
		return nil, err
	}
	if cfg.TimeoutAnonAbsolute, err = getSeconds("TIMEOUT_ANON_ABSOLUTE_SECS", 1200); err != nil {
		return nil, err
	}
	if cfg.EmailExpire, err = getSeconds("EMAIL_EXPIRE_SECS", 24*3600); err != nil {
		return nil, err
	}

	// Outbound email envelope and composition.
	cfg.EmailFrom = getEnv("EMAIL_FROM", "noreply@unconfigured.com")
	cfg.EmailHelo = getEnv("EMAIL_HELO", "unconfigured.com")
	cfg.EmailSMTPHost = getEnv("EMAIL_SMTP_HOST", "127.0.0.1")
	if cfg.EmailSMTPPort, err = getInt("EMAIL_SMTP_PORT", 25); err != nil {
		return nil, err
	}
	cfg.EmailSMTPUser = os.Getenv("EMAIL_SMTP_USER")
	cfg.EmailSMTPPassword = os.Getenv("EMAIL_SMTP_PASSWORD")
	cfg.EmailTitle = getEnv("EMAIL_TITLE", "Registration Email from unconfigured")
	cfg.EmailContactPerson = getEnv("EMAIL_CONTACT_PERSON", "")
	cfg.EmailConfirmURL = getEnv("EMAIL_CONFIRM_URL_BASE", "")
	cfg.EmailFake = os.Getenv("EMAIL_FAKE") == "1"

	//Timeout values are optional and have a default value if not
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getSeconds(key string, defSecs int) (time.Duration, error) {
	n, err := getInt(key, defSecs)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}
