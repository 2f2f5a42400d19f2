package bootstrap

import (
	"log"
	"os"

	"gorm.io/gorm"

	"cubie-assistant-be/internal/config"
	"cubie-assistant-be/internal/controller"
	"cubie-assistant-be/internal/pkg/logger"
	"cubie-assistant-be/internal/pkg/mailer"
	"cubie-assistant-be/internal/service"
	"cubie-assistant-be/pkg/agent"
	"cubie-assistant-be/pkg/analytics"
	"cubie-assistant-be/pkg/charts"
	"cubie-assistant-be/pkg/embedding"
	"cubie-assistant-be/pkg/genai"
	"cubie-assistant-be/pkg/intent"
	"cubie-assistant-be/pkg/navigation"
	"cubie-assistant-be/pkg/retrieval"
)

type Container struct {
	AuthController  controller.IAuthController
	ChatController  controller.IChatController
	AdminController controller.IAdminController

	Logger logger.ILogger
	DB     *gorm.DB
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	stdLog := log.Default()

	// Embedding provider feeds the help-document retrieval index.
	var embeddingProvider embedding.Provider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	genaiClient := genai.NewClient(cfg.Keys.GoogleGemini)

	index, err := retrieval.LoadIndex(db, embeddingProvider, stdLog)
	if err != nil {
		// Help mode degrades to ungrounded answers; analytics is unaffected.
		sysLogger.Warn("bootstrap", "Help index unavailable", map[string]interface{}{"error": err.Error()})
		index = nil
	} else {
		log.Printf("[INFO] Help index loaded: %d documents", index.Len())
	}

	helpWhitelist := make(map[string]bool)
	if index != nil {
		for _, url := range index.SourceURLs() {
			helpWhitelist[url] = true
		}
	}

	navResolver, err := navigation.Load(cfg.App.NavRoutesPath)
	if err != nil {
		sysLogger.Warn("bootstrap", "Navigation routes unavailable", map[string]interface{}{"path": cfg.App.NavRoutesPath, "error": err.Error()})
		navResolver = navigation.NewResolver(nil)
	}

	dbSchema := ""
	if raw, err := os.ReadFile("schema_prompt.txt"); err == nil {
		dbSchema = string(raw)
	} else {
		sysLogger.Warn("bootstrap", "Schema prompt not found, analytics prompt carries no schema", nil)
	}

	queryRunner := analytics.NewRunner(db, stdLog)
	disputeStore := analytics.NewDisputeStore(db, stdLog)
	chartRenderer := charts.NewRenderer(queryRunner, cfg.App.PublicDir+"/demo", cfg.App.ChartBaseURL, stdLog)

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.App.PublicDir,
		db,
		sysLogger,
	)

	toolbox := agent.Toolbox{
		Queries:  queryRunner,
		Charts:   chartRenderer,
		Disputes: disputeStore,
		Mail:     emailService,
		Nav:      navResolver,
	}
	agentRunner := agent.NewRunner(toolbox, agent.NewDraftStore(), agent.NewArtifacts(), stdLog)

	classifier := intent.NewClassifier(genaiClient, cfg.Ai.ClassifierModel, stdLog)

	chatSvc := service.NewChatService(
		genaiClient,
		cfg.Ai.ChatModel,
		cfg.Ai.FallbackModels,
		classifier,
		index,
		agentRunner,
		dbSchema,
		helpWhitelist,
		sysLogger,
		stdLog,
	)
	authSvc := service.NewAuthService(db, cfg.Keys.JWTSecret, sysLogger)

	return &Container{
		AuthController:  controller.NewAuthController(authSvc),
		ChatController:  controller.NewChatController(chatSvc),
		AdminController: controller.NewAdminController(sysLogger),
		Logger:          sysLogger,
		DB:              db,
	}
}
