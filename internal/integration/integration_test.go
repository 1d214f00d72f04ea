package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	pgsource "quiz-playback-service/internal/infra/postgres"
	pgmigrations "quiz-playback-service/internal/infra/postgres/migrations"
	infraredis "quiz-playback-service/internal/infra/redis"
	"quiz-playback-service/internal/playback"
)

func TestPlaybackEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedDocument(t, ctx, pgURL, "doc-1", sampleDocument(t))

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	source := pgsource.NewDocumentSource(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	cache := infraredis.NewDocumentCache(redisClient, source, 5*time.Minute)

	raw, err := cache.FetchDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("fetch document: %v", err)
	}
	// A second fetch comes from redis, not postgres.
	if _, err := cache.FetchDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}

	player := playback.NewPlayer(
		playback.WithTickInterval(10*time.Millisecond),
		playback.WithRevealWindow(10*time.Millisecond),
	)
	defer player.Stop()

	updates, cancel := player.Subscribe()
	defer cancel()

	if err := player.Load(raw); err != nil {
		t.Fatalf("load: %v", err)
	}

	selected := false
	deadline := time.After(5 * time.Second)
	for {
		var snap playback.Snapshot
		select {
		case snap = <-updates:
		case <-deadline:
			t.Fatalf("playback never finished")
		}
		if !selected && snap.Scene != nil && snap.Scene.SceneID == "q-1" && !snap.Scene.Answered {
			selected = player.SelectOption("B")
		}
		if snap.Status != playback.StatusFinished {
			continue
		}
		if len(snap.Results) != 3 {
			t.Fatalf("expected a result per scene, got %+v", snap.Results)
		}
		res := snap.Results["q-1"]
		if res.IsCorrect == nil || !*res.IsCorrect {
			t.Fatalf("expected a correct answer for q-1, got %+v", res)
		}
		if snap.Summary.Correct != 1 || snap.Summary.Unanswered != 2 {
			t.Fatalf("unexpected summary %+v", snap.Summary)
		}
		return
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func seedDocument(t *testing.T, ctx context.Context, dsn, docID string, raw []byte) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO quiz_documents (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`, docID, string(raw)); err != nil {
		t.Fatalf("insert document: %v", err)
	}
}

func sampleDocument(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"videoId":                "video-1",
		"totalDurationInSeconds": 62,
		"scenes": []map[string]any{
			{
				"sceneId":           "intro-1",
				"durationInSeconds": 1,
				"sceneType":         "Intro",
				"variant":           "V1",
				"props":             map[string]any{"headingText": "Get ready"},
			},
			{
				"sceneId":           "q-1",
				"durationInSeconds": 60,
				"sceneType":         "QnA",
				"variant":           "PinkGridQuiz",
				"props": map[string]any{
					"questionText":    "What is 2 + 2?",
					"correctAnswerId": "B",
					"timerDuration":   30,
					"options": []map[string]any{
						{"id": "A", "text": "3"},
						{"id": "B", "text": "4"},
						{"id": "C", "text": "5"},
					},
				},
			},
			{
				"sceneId":           "outro-1",
				"durationInSeconds": 1,
				"sceneType":         "Outro",
				"variant":           "OutroV1",
				"props": map[string]any{
					"scoreText":    "How did you do?",
					"callToAction": "Follow for more!",
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return raw
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
