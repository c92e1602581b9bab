package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"intelliquiz-engine/internal/app"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Mode string `yaml:"mode"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Auth struct {
		Secret string `yaml:"secret"`
		Issuer string `yaml:"issuer"`
	} `yaml:"auth"`
	Leaderboard struct {
		CacheTTL     string `yaml:"cacheTTL"`
		DefaultLimit int    `yaml:"defaultLimit"`
		StreamSize   int    `yaml:"streamSize"`
	} `yaml:"leaderboard"`
	Analytics struct {
		WeakTopics int `yaml:"weakTopics"`
		TrendSize  int `yaml:"trendSize"`
	} `yaml:"analytics"`
	Gamification struct {
		Tiers []struct {
			MinScore int `yaml:"minScore"`
			Points   int `yaml:"points"`
		} `yaml:"tiers"`
		Badges []struct {
			Name      string `yaml:"name"`
			MinPoints int    `yaml:"minPoints"`
		} `yaml:"badges"`
	} `yaml:"gamification"`
}

// Load reads YAML config from path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default is the configuration of a single in-memory instance.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Mode = "release"
	cfg.Log.Mode = "dev"
	cfg.Leaderboard.CacheTTL = "30s"
	cfg.Leaderboard.DefaultLimit = 10
	cfg.Leaderboard.StreamSize = app.DefaultStreamSize
	cfg.Analytics.WeakTopics = app.DefaultWeakTopics
	cfg.Analytics.TrendSize = app.DefaultTrendSize
	return cfg
}

// GamificationRules builds the rules table; sections left empty fall back to the defaults.
func (c Config) GamificationRules() (app.GamificationRules, error) {
	g := c.Gamification
	if len(g.Tiers) == 0 && len(g.Badges) == 0 {
		return app.DefaultGamificationRules(), nil
	}
	tiers := []app.PointTier{{MinScore: 80, Points: 50}, {MinScore: 50, Points: 25}, {MinScore: 0, Points: 10}}
	if len(g.Tiers) > 0 {
		tiers = tiers[:0]
		for _, t := range g.Tiers {
			tiers = append(tiers, app.PointTier{MinScore: t.MinScore, Points: t.Points})
		}
	}
	badges := []app.BadgeThreshold{{Name: "Bronze", MinPoints: 200}, {Name: "Silver", MinPoints: 500}, {Name: "Gold", MinPoints: 1000}}
	if len(g.Badges) > 0 {
		badges = badges[:0]
		for _, b := range g.Badges {
			badges = append(badges, app.BadgeThreshold{Name: b.Name, MinPoints: b.MinPoints})
		}
	}
	return app.NewGamificationRules(tiers, badges)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
