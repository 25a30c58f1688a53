package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
	"live_chat_service/pkg/database"
	"live_chat_service/pkg/logger"
	"live_chat_service/pkg/middlewares"
	"live_chat_service/pkg/syncclient"
	testtool "live_chat_service/pkg/test_tool"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testShopID  = "shop_it_1"
	testShopKey = "test-key"
	testBaseURL = "http://127.0.0.1:8082"
	testWSURL   = "ws://127.0.0.1:8082"
)

var syncApp *fiber.App
var testAppendUC *AppendMessageUseCase
var testRedis *redis.Client

// **TestMain 初始化測試環境**
func TestMain(m *testing.M) {
	ctx := context.Background()
	logger.SetNewNop()

	// **啟動 MongoDB**
	mongoContainer, mongoHost, mongoPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "mongo:latest",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start MongoDB container: %v", err)
	}
	fmt.Printf("✅ MongoDB running at %s:%s\n", mongoHost, mongoPort)

	// **啟動 Redis**
	redisContainer, redisHost, redisPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:latest",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start Redis container: %v", err)
	}
	fmt.Printf("✅ Redis running at %s:%s\n", redisHost, redisPort)

	// **初始化 MongoDB**
	mongo, err := database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort),
		RetryCount:    5,
		RetryInterval: 5,
	}, "test_chat_sync_db")
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongo.Close(ctx)

	// **初始化 Redis**
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort),
		DB:   0,
	})
	testRedis = redisClient

	// **初始化 Repository**
	seqRepo := repository.NewSequenceRepository(redisClient, mongo.Database, 16)
	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	convRepo := repository.NewMongoConversationRepository(mongo.Database)
	unreadIdx := repository.NewUnreadIndexRepository(redisClient)
	pub := repository.NewRedisPubSub(redisClient)

	if err := msgRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("❌ Failed to create indexes: %v", err)
	}

	// **初始化 UseCases / Handlers**
	unreadUC := NewUnreadUseCase(convRepo, unreadIdx, nil, "")
	testAppendUC = NewAppendMessageUseCase(seqRepo, msgRepo, convRepo, pub, unreadUC, nil)
	fetchUC := NewFetchMessagesUseCase(msgRepo)

	sessionStore := database.NewRedisRepository[ClientSession](redisClient)
	clientAPI := NewClientAPIHandler(ctx, testAppendUC, fetchUC, sessionStore, 30*time.Minute, time.Second, 100)
	wsHandler := NewSyncWebsocketHandler(fetchUC, pub, 100)

	// 測試用的商戶金鑰驗證（不掛 postgres）
	validate := func(ctx context.Context, shopID, shopKey, origin string) error {
		if shopKey == testShopKey {
			return nil
		}
		return errors.New("invalid shop key")
	}

	syncApp = fiber.New()
	api := syncApp.Group("/api", middlewares.ShopKeyMiddleware(validate))
	api.Post("/connect", clientAPI.Connect)
	api.Post("/send", clientAPI.Send)
	api.Get("/messages", clientAPI.Messages)
	syncApp.Get("/ws/customer", middlewares.ShopKeyMiddleware(validate), websocket.New(func(c *websocket.Conn) {
		wsHandler.HandleCustomer(context.Background(), c)
	}))

	go func() {
		if err := syncApp.Listen(":8082"); err != nil {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()
	fmt.Println("✅ Sync server started at :8082")
	time.Sleep(3 * time.Second)

	// **執行測試**
	code := m.Run()

	// **清理測試環境**
	_ = mongoContainer.Terminate(ctx)
	_ = redisContainer.Terminate(ctx)
	syncApp.Shutdown()

	os.Exit(code)
}

// 輪詢全流程：送訊息 → lastId=0 全量 → 以 maxSequenceId 續拉為空
func TestPollFlow(t *testing.T) {
	ctx := context.Background()
	api := syncclient.NewAPIClient(testBaseURL, testShopID, testShopKey)

	userID := "user_poll_" + uuid.New().String()[:8]
	info, err := api.Connect(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, testShopID+"_"+userID, info.ConversationID)

	for i := 1; i <= 3; i++ {
		_, err := api.Send(ctx, info.SessionID, fmt.Sprintf("message %d", i), "")
		require.NoError(t, err)
	}

	batch, err := api.FetchSince(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, batch.Messages, 3)
	for i := 1; i < len(batch.Messages); i++ {
		assert.Greater(t, batch.Messages[i].SequenceID, batch.Messages[i-1].SequenceID)
	}

	// 游標推到高水位後再拉必須是空的
	again, err := api.FetchSince(ctx, userID, batch.MaxSequenceID)
	require.NoError(t, err)
	assert.Empty(t, again.Messages)
	assert.Equal(t, batch.MaxSequenceID, again.MaxSequenceID)
}

// websocket：積壓回放 → caught_up → 即時推送
func TestWebsocketBacklogAndLive(t *testing.T) {
	ctx := context.Background()
	api := syncclient.NewAPIClient(testBaseURL, testShopID, testShopKey)

	userID := "user_ws_" + uuid.New().String()[:8]
	info, err := api.Connect(ctx, userID)
	require.NoError(t, err)

	// 先落兩則，之後的連線應以積壓回放收到
	_, err = api.Send(ctx, info.SessionID, "backlog 1", "")
	require.NoError(t, err)
	_, err = api.Send(ctx, info.SessionID, "backlog 2", "")
	require.NoError(t, err)

	wsURL := fmt.Sprintf("%s/ws/customer?shopId=%s&shopKey=%s", testWSURL, testShopID, testShopKey)
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "WebSocket 連線失敗")
	defer conn.Close()

	sub := domain.WSRequest{Type: domain.WSAuth, ShopID: testShopID, UserID: userID, LastSequenceID: 0}
	require.NoError(t, conn.WriteJSON(sub))

	// 收積壓直到 caught_up
	var backlog []domain.Message
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var resp domain.WSResponse
		require.NoError(t, json.Unmarshal(raw, &resp))

		if resp.Type == domain.WSBacklog {
			backlog = append(backlog, resp.Messages...)
			continue
		}
		require.Equal(t, domain.WSCaughtUp, resp.Type)
		break
	}
	assert.Len(t, backlog, 2)

	// caught_up 之後送一則，應走即時推送進來
	sent, err := api.Send(ctx, info.SessionID, "live message", "")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var live domain.WSResponse
	require.NoError(t, json.Unmarshal(raw, &live))
	require.Equal(t, domain.WSNewMessage, live.Type)
	require.NotNil(t, live.Message)
	assert.Equal(t, sent.ID, live.Message.ID)
	assert.Equal(t, "live message", live.Message.Content)
}

// 積壓回放期間同時有即時推送，兩條寫入路徑重疊也不能寫壞連線
func TestWebsocketLiveDuringBacklog(t *testing.T) {
	ctx := context.Background()
	userID := "user_overlap_" + uuid.New().String()[:8]
	conversationID := domain.NewConversationID(testShopID, userID)

	// 超過一頁的積壓，逼出多頁回放
	const backlogN = 150
	for i := 1; i <= backlogN; i++ {
		_, err := testAppendUC.Execute(ctx, testShopID, conversationID,
			domain.SenderCustomer, userID, "", fmt.Sprintf("backlog %d", i))
		require.NoError(t, err)
	}

	wsURL := fmt.Sprintf("%s/ws/customer?shopId=%s&shopKey=%s", testWSURL, testShopID, testShopKey)
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "WebSocket 連線失敗")
	defer conn.Close()

	sub := domain.WSRequest{Type: domain.WSAuth, ShopID: testShopID, UserID: userID, LastSequenceID: 0}
	require.NoError(t, conn.WriteJSON(sub))

	// 回放開始後立刻發即時訊息，與積壓寫入同時進行
	const liveN = 20
	go func() {
		for i := 1; i <= liveN; i++ {
			_, _ = testAppendUC.Execute(ctx, testShopID, conversationID,
				domain.SenderStaff, "staff_1", "", fmt.Sprintf("live %d", i))
		}
	}()

	received := map[string]bool{}
	caughtUp := false
	deadline := time.Now().Add(15 * time.Second)
	for len(received) < backlogN+liveN {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "連線中斷，已收 %d 則", len(received))
		var resp domain.WSResponse
		require.NoError(t, json.Unmarshal(raw, &resp))

		switch resp.Type {
		case domain.WSBacklog:
			for _, m := range resp.Messages {
				received[m.ID] = true
			}
		case domain.WSNewMessage:
			require.NotNil(t, resp.Message)
			received[resp.Message.ID] = true
		case domain.WSCaughtUp:
			caughtUp = true
		default:
			t.Fatalf("不該收到的 frame 類型: %s (%s)", resp.Type, resp.Error)
		}
	}
	assert.True(t, caughtUp)
	assert.Len(t, received, backlogN+liveN)
}

// 活躍商戶的段 key 不會在使用中過期：段內發號會把 TTL 往後推
func TestSequenceSegmentTTLRefresh(t *testing.T) {
	ctx := context.Background()
	shopID := "shop_ttl_" + uuid.New().String()[:8]
	conversationID := domain.NewConversationID(shopID, "user_1")

	_, err := testAppendUC.Execute(ctx, shopID, conversationID,
		domain.SenderCustomer, "user_1", "", "first")
	require.NoError(t, err)

	// 模擬快到期的段，下一次段內發號要把 TTL 推回去
	key := "seq:blk:" + shopID
	require.NoError(t, testRedis.PExpire(ctx, key, 5*time.Second).Err())

	_, err = testAppendUC.Execute(ctx, shopID, conversationID,
		domain.SenderCustomer, "user_1", "", "second")
	require.NoError(t, err)

	ttl, err := testRedis.PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute)
}

// 併發寫入下商戶範圍序號仍唯一且遞增
func TestConcurrentSequenceUnique(t *testing.T) {
	ctx := context.Background()
	shopID := "shop_seq_" + uuid.New().String()[:8]
	conversationID := domain.NewConversationID(shopID, "user_1")

	const n = 20
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := testAppendUC.Execute(ctx, shopID, conversationID,
				domain.SenderCustomer, "user_1", "", fmt.Sprintf("m%d", i))
			errCh <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errCh)
	}

	batch, err := testAppendUC.msgRepo.FetchSince(ctx, shopID, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, batch.Messages, n)

	seen := map[int64]bool{}
	for i, m := range batch.Messages {
		assert.False(t, seen[m.SequenceID], "duplicate sequence id %d", m.SequenceID)
		seen[m.SequenceID] = true
		if i > 0 {
			assert.Greater(t, m.SequenceID, batch.Messages[i-1].SequenceID)
		}
	}
	assert.Equal(t, int64(n), batch.MaxSequenceID)
}
