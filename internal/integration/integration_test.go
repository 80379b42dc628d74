package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"buzzboard/internal/app"
	"buzzboard/internal/auth"
	"buzzboard/internal/domain"
	pgstore "buzzboard/internal/infra/postgres"
	pgmigrations "buzzboard/internal/infra/postgres/migrations"
	infraredis "buzzboard/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestGameRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateAndOpen(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	pool.Close()

	store := pgstore.NewStore(db)
	if err := store.SeedQuestions(ctx, sampleQuestions()); err != nil {
		t.Fatalf("seed questions: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	catalog := infraredis.NewCatalogCache(redisClient, store, 5*time.Minute)
	tokens := infraredis.NewTokenStore(redisClient)

	authService := auth.NewService(store, tokens, time.Hour)
	game := app.NewGameService(store, catalog)

	host, err := authService.Register(ctx, auth.RegisterInput{
		Email: "host@example.com", Username: "host", DisplayName: "Host", Password: "password123",
	})
	if err != nil {
		t.Fatalf("register host: %v", err)
	}
	if _, err := authService.Register(ctx, auth.RegisterInput{
		Email: "alice@example.com", Username: "alice", DisplayName: "Alice", Password: "password123",
	}); err != nil {
		t.Fatalf("register player: %v", err)
	}

	token, player, err := authService.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resolved, err := authService.ResolveToken(ctx, token)
	if err != nil || resolved != player.ID {
		t.Fatalf("resolve token: got %q err %v", resolved, err)
	}

	lobby, err := game.CreateLobby(ctx, host.ID, "Integration Night")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	joined, err := game.JoinLobby(ctx, player.ID, lobby.Code)
	if err != nil {
		t.Fatalf("join lobby: %v", err)
	}

	var participantID string
	for _, p := range joined.Participants {
		if p.UserID == player.ID {
			participantID = p.ID
		}
	}
	if participantID == "" {
		t.Fatalf("player participant missing in %+v", joined.Participants)
	}

	board, err := game.GetBoard(ctx, lobby.ID, player.ID)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if len(board.Rounds) != 1 || len(board.Rounds[0].Categories) != 1 {
		t.Fatalf("unexpected board shape %+v", board.Rounds)
	}
	stateID := board.Rounds[0].Categories[0].Questions[1].ID
	value := board.Rounds[0].Categories[0].Questions[1].Value

	if _, err := game.SelectQuestion(ctx, lobby.ID, stateID, host.ID); err != nil {
		t.Fatalf("select: %v", err)
	}

	attempt, err := game.SubmitBuzzAttempt(ctx, lobby.ID, player.ID)
	if err != nil {
		t.Fatalf("buzz: %v", err)
	}
	marked, err := game.MarkBuzzAttemptResult(ctx, lobby.ID, attempt.ID, host.ID, domain.VerdictCorrect)
	if err != nil {
		t.Fatalf("mark result: %v", err)
	}
	if marked.Result != domain.BuzzCorrect {
		t.Fatalf("expected CORRECT, got %s", marked.Result)
	}

	state, err := store.QuestionStateByID(ctx, stateID)
	if err != nil {
		t.Fatalf("reload state: %v", err)
	}
	if state.Status != domain.QuestionResolved {
		t.Fatalf("expected RESOLVED, got %s", state.Status)
	}

	scored, err := store.ParticipantByID(ctx, participantID)
	if err != nil {
		t.Fatalf("reload participant: %v", err)
	}
	if scored.Score != value {
		t.Fatalf("expected score %d, got %d", value, scored.Score)
	}

	events, err := game.LobbyScoreEvents(ctx, lobby.ID, player.ID, 10)
	if err != nil {
		t.Fatalf("score events: %v", err)
	}
	if len(events) != 1 || events[0].Delta != value {
		t.Fatalf("expected one ledger entry with delta %d, got %+v", value, events)
	}
}

func migrateAndOpen(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleQuestions() []*domain.Question {
	var questions []*domain.Question
	for i, value := range []int{100, 200, 300, 500} {
		questions = append(questions, &domain.Question{
			ID:            fmt.Sprintf("q-%d", i),
			Category:      "History",
			CategoryIndex: 0,
			RoundIndex:    0,
			BaseValue:     value,
			Prompt:        fmt.Sprintf("prompt %d", value),
			Answer:        fmt.Sprintf("answer %d", value),
		})
	}
	return questions
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "game", "POSTGRES_PASSWORD": "gamepass", "POSTGRES_DB": "gamedb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://game:gamepass@%s:%s/gamedb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
