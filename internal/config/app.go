package config

import (
	"net/http"

	"github.com/fitfeed-app/fitfeed-go/internal/delivery/tui"
	"github.com/fitfeed-app/fitfeed-go/internal/model"
	"github.com/fitfeed-app/fitfeed-go/internal/repository"
	"github.com/fitfeed-app/fitfeed-go/internal/usecase"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

type AppConfig struct {
	Log    *zap.Logger
	Config *koanf.Koanf
}

// App assembles the dependency graph: repository over HTTP, the comment
// usecase owning the tree for the configured resource, and the terminal UI
// on top.
func App(config *AppConfig) *tea.Program {
	commentRepository := repository.NewCommentRepository(config.Log, config.Config, &http.Client{})

	viewer := LoadViewer(config.Config)
	resourceId := config.Config.Int64("FITFEED_RESOURCE_ID")

	commentUsecase := usecase.NewCommentUsecase(commentRepository, config.Log, config.Config, viewer, resourceId)

	browser := tui.NewModel(commentUsecase, config.Log, config.Config)

	return tea.NewProgram(browser, tea.WithAltScreen())
}

// LoadViewer reads the signed-in user's identity from config. Without an
// access token the session is anonymous: browsing works, writing does not.
func LoadViewer(config *koanf.Koanf) *model.Viewer {
	if config.String("FITFEED_ACCESS_TOKEN") == "" {
		return nil
	}

	return &model.Viewer{
		Id:          config.Int64("FITFEED_VIEWER_ID"),
		DisplayName: config.String("FITFEED_VIEWER_NAME"),
		AvatarRef:   config.String("FITFEED_VIEWER_AVATAR"),
	}
}
