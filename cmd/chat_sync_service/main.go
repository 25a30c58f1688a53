package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"live_chat_service/internal/chat/app"
	"live_chat_service/internal/chat/repository"
	"live_chat_service/internal/chat/router"
	"live_chat_service/pkg/config"
	"live_chat_service/pkg/database"
	"live_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatSyncService, config.EnvConfig.ChatSyncServiceLogPath)
	cfg := config.LoadConfig[config.ChatSync](config.EnvConfig.ChatSyncService, config.EnvConfig.ChatSyncServiceYAMLPath)

	// 2. 建立 Mongo 連線 (訊息日誌、會話、發號段)
	ctx := context.Background()
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoDB.User, cfg.MongoDB.Password, cfg.MongoDB.Host, cfg.MongoDB.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoDB.RetryCount,
			RetryInterval: time.Duration(cfg.MongoDB.RetryInterval),
		},
		cfg.MongoDB.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s]", uri)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	// 3. 建立 Redis 連線 (發號段、Pub/Sub、未讀索引、階段快取)
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 4. 建立 PostgreSQL 連線：gorm 管商戶註冊表、pgxpool 管客服帳號
	pgURI := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	gormDB, err := database.NewGormConnection(database.Connection{
		ConnectStr:    pgURI,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect postgres (gorm) err : %v", err))
	}
	pgPool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    pgURI,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect postgres (pgx) err : %v", err))
	}
	defer pgPool.Close()

	// 5. 歸檔匯出與 badge 事件（可選，未設定就不啟用）
	var archiveWriter *kafka.Writer
	if len(cfg.Kafka.Brokers) > 0 {
		archiveWriter, err = database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.ArchiveTopic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect kafka err : %v", err))
		}
		defer archiveWriter.Close()
	}

	var rabbitRepo database.RabbitRepo
	if cfg.RabbitMQ.URL != "" {
		rabbitConn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    cfg.RabbitMQ.URL,
			RetryCount:    cfg.RabbitMQ.RetryCount,
			RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect rabbitmq err : %v", err))
		}
		defer rabbitConn.Close()
		ch, err := database.GetRabbitMQChannelWithRetry(rabbitConn, cfg.RabbitMQ.RetryCount, time.Duration(cfg.RabbitMQ.RetryInterval))
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("rabbitmq channel err : %v", err))
		}
		rabbitRepo = database.NewRabbitRepository(ch)
	}

	// 6. 初始化 Repository
	seqRepo := repository.NewSequenceRepository(redisClient, mongo.Database, 0)
	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	convRepo := repository.NewMongoConversationRepository(mongo.Database)
	unreadIdx := repository.NewUnreadIndexRepository(redisClient)
	shopRepo := repository.NewShopRepo(gormDB)
	staffRepo := repository.NewStaffRepository(pgPool)
	pub := repository.NewRedisPubSub(redisClient)

	if err := msgRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal(fmt.Sprintf("ensure message indexes err : %v", err))
	}
	if err := shopRepo.AutoMigrate(); err != nil {
		logger.Log.Fatal(fmt.Sprintf("shop migrate err : %v", err))
	}

	// 7. 初始化 UseCases 與 Handlers
	unreadUC := app.NewUnreadUseCase(convRepo, unreadIdx, rabbitRepo, cfg.RabbitMQ.BadgeExchange)
	appendUC := app.NewAppendMessageUseCase(seqRepo, msgRepo, convRepo, pub, unreadUC, archiveWriter)
	fetchUC := app.NewFetchMessagesUseCase(msgRepo)

	sessionStore := database.NewRedisRepository[app.ClientSession](redisClient)
	clientAPI := app.NewClientAPIHandler(ctx, appendUC, fetchUC, sessionStore, cfg.SessionTTL, cfg.PollInterval, cfg.PageLimit)
	staffAPI := app.NewStaffAPIHandler(staffRepo, convRepo, appendUC, fetchUC, unreadUC, cfg.PageLimit)
	wsHandler := app.NewSyncWebsocketHandler(fetchUC, pub, cfg.PageLimit)

	// 8. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatSyncServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	// 注册路由
	router.RegisterRoutes(r, shopRepo.Validate, clientAPI, staffAPI, wsHandler)

	// Listen
	port := ":" + cfg.Port
	log.Printf("Chat Sync Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
