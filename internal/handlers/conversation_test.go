package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"chatserver/internal/middleware"
	"chatserver/internal/models"
	"chatserver/internal/services"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type conversationFixture struct {
	db     *gorm.DB
	relay  *services.Relay
	events chan services.RelayEvent
	router *gin.Engine
	convs  *services.ConversationService
}

// newConversationFixture wires a router whose Leave route acts as the given
// user, with the relay running against an in-process Redis.
func newConversationFixture(t *testing.T, actAs func() *models.User) *conversationFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.MessageRead{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	events := make(chan services.RelayEvent, 16)
	relay := services.NewRelay(rdb, func(ev services.RelayEvent) { events <- ev })
	if err := relay.Start(context.Background()); err != nil {
		t.Fatalf("start relay: %v", err)
	}
	t.Cleanup(func() { relay.Close() })

	convs := services.NewConversationService(db)
	h := NewConversationHandler(convs, services.NewMessageService(db), services.NewUserService(db), relay)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUser, actAs()) })
	r.POST("/api/conversations/:id/leave", h.Leave)

	return &conversationFixture{db: db, relay: relay, events: events, router: r, convs: convs}
}

func (f *conversationFixture) waitForEvent(t *testing.T) services.RelayEvent {
	t.Helper()
	select {
	case ev := <-f.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relay event")
		return services.RelayEvent{}
	}
}

func TestConversationHandler_LeaveClosesPair(t *testing.T) {
	var actor *models.User
	f := newConversationFixture(t, func() *models.User { return actor })
	ctx := context.Background()

	users := services.NewUserService(f.db)
	alice, err := users.Create(ctx, "alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	bob, err := users.Create(ctx, "bob", "bob@example.com", "password123")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	conv, err := f.convs.Create(ctx, []uint{alice.ID, bob.ID}, alice.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	actor = alice
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/conversations/"+itoa(conv.ID)+"/leave", nil)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200, body %s", w.Code, w.Body.String())
	}

	// The pair conversation is closed, not merely shrunk.
	if _, err := f.convs.FindByID(ctx, conv.ID, false); err == nil {
		t.Error("conversation should be soft-deleted after the pair breaks up")
	}

	// Remaining members hear about the departure through the relay.
	ev := f.waitForEvent(t)
	if ev.Event != services.EventUserLeftRoom {
		t.Errorf("event = %q, expected %q", ev.Event, services.EventUserLeftRoom)
	}
	if ev.Room != conv.ID {
		t.Errorf("event room = %d, expected %d", ev.Room, conv.ID)
	}
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
