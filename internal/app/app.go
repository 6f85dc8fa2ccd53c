package app

import (
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/mrkjhm/belisita-catalog/internal/adapters/backend"
	"github.com/mrkjhm/belisita-catalog/internal/adapters/cloudinary"
	"github.com/mrkjhm/belisita-catalog/internal/adapters/httpserver"
	"github.com/mrkjhm/belisita-catalog/internal/adapters/storage/localfs"
	"github.com/mrkjhm/belisita-catalog/internal/gate"
	"github.com/mrkjhm/belisita-catalog/internal/query"
	"github.com/mrkjhm/belisita-catalog/internal/usecase"
)

type Config struct {
	BackendURL    string
	BackendToken  string
	CloudName     string
	CloudAPIKey   string
	AdminToken    string
	PreviewDir    string
	PreviewPrefix string
}

// ConfigFromEnv assembles the configuration from the environment with
// development fallbacks.
func ConfigFromEnv() Config {
	cfg := Config{
		BackendURL:    os.Getenv("BACKEND_URL"),
		BackendToken:  os.Getenv("BACKEND_TOKEN"),
		CloudName:     os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudAPIKey:   os.Getenv("CLOUDINARY_API_KEY"),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		PreviewDir:    os.Getenv("PREVIEW_DIR"),
		PreviewPrefix: "/previews",
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://localhost:4000"
	}
	if cfg.PreviewDir == "" {
		cfg.PreviewDir = "previews"
	}
	return cfg
}

type App struct {
	Config     Config
	ProductUC  *usecase.ProductUC
	CategoryUC *usecase.CategoryUC
	ExportUC   *usecase.ExportUC
	Sessions   *usecase.SessionRegistry
	Catalog    *query.Engine
	Gate       *gate.Gate
}

func NewApp(cfg Config) (*App, error) {
	if err := os.MkdirAll(cfg.PreviewDir, 0o755); err != nil {
		return nil, err
	}

	var tokens oauth2.TokenSource
	if cfg.BackendToken != "" {
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BackendToken})
	}
	api := backend.NewClient(cfg.BackendURL, tokens)
	uploader := cloudinary.New(api, cloudinary.UploadURL(cfg.CloudName), cfg.CloudAPIKey)
	previews := localfs.New(cfg.PreviewDir, cfg.PreviewPrefix)

	g := gate.New(func(key gate.Key, state gate.State, err error) {
		if err != nil {
			log.Error().Err(err).Str("kind", string(key.Kind)).Str("target", key.TargetID).Msg("delete failed")
			return
		}
		log.Info().Str("kind", string(key.Kind)).Str("target", key.TargetID).Msg("delete confirmed")
	})
	catalog := query.NewEngine(api)

	a := &App{Config: cfg, Catalog: catalog, Gate: g}
	a.Sessions = usecase.NewSessionRegistry(api, previews)
	a.ProductUC = &usecase.ProductUC{API: api, Uploader: uploader, Catalog: catalog, Gate: g}
	a.CategoryUC = &usecase.CategoryUC{API: api, Gate: g}
	a.ExportUC = &usecase.ExportUC{API: api}
	return a, nil
}

func (a *App) HTTPHandler() http.Handler {
	return httpserver.New(a.ProductUC, a.CategoryUC, a.ExportUC, a.Sessions, a.Catalog, a.Config.PreviewDir, a.Config.AdminToken)
}
