package integration

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"speak-assessment-service/internal/app"
	"speak-assessment-service/internal/catalog"
	"speak-assessment-service/internal/domain"
	pgloader "speak-assessment-service/internal/infra/postgres"
	pgmigrations "speak-assessment-service/internal/infra/postgres/migrations"
	infraredis "speak-assessment-service/internal/infra/redis"
	"speak-assessment-service/internal/selection"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestListeningSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	loader := pgloader.NewPoolLoader(pool)
	embedded, err := catalog.NewEmbeddedLoader()
	require.NoError(t, err)
	for _, p := range embedded.Pools() {
		require.NoError(t, loader.SavePool(ctx, p))
	}

	stored, err := loader.LoadPool(ctx, domain.SectionListening)
	require.NoError(t, err)
	want, err := embedded.LoadPool(ctx, domain.SectionListening)
	require.NoError(t, err)
	require.Equal(t, want, stored)

	_, err = loader.LoadPool(ctx, "karaoke")
	require.ErrorIs(t, err, domain.ErrUnknownSection)

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer redisClient.Close()

	pools := infraredis.NewPoolRepository(redisClient, loader, 5*time.Minute)
	service := app.NewAssessmentService(
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		infraredis.NewResultStore(redisClient, 30*time.Minute),
		selection.NewSelector(pools, rand.New(rand.NewSource(1))),
	)

	session, err := service.StartSession(ctx, domain.SectionListening, app.Devices{})
	require.NoError(t, err)
	live, err := redisClient.Get(ctx, "assessment:session:"+session.ID()).Result()
	require.NoError(t, err)
	require.Equal(t, "listening", live)
	cached, err := redisClient.Exists(ctx, "pool:listening").Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, cached)

	var completion *domain.Completion
	for _, q := range session.QuestionSet().Questions {
		require.NoError(t, session.SelectOption(q.CorrectOptionIndex))
		completion, err = service.Advance(ctx, session.ID())
		require.NoError(t, err)
	}
	require.NotNil(t, completion)

	result, err := service.Result(ctx, session.ID())
	require.NoError(t, err)
	require.Len(t, result.AnswerRecords, len(session.QuestionSet().Questions))
	for _, rec := range result.AnswerRecords {
		require.NotNil(t, rec.IsCorrect)
		require.True(t, *rec.IsCorrect)
	}

	gone, err := redisClient.Exists(ctx, "assessment:session:"+session.ID()).Result()
	require.NoError(t, err)
	require.Zero(t, gone)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "speak", "POSTGRES_PASSWORD": "speakpass", "POSTGRES_DB": "speakdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://speak:speakpass@%s:%s/speakdb?sslmode=disable", host, port.Port())
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
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
