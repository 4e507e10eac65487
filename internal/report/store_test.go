package report

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/postgres"
)

// Run with EM_TEST_POSTGRES=1 and the EM_POSTGRES_* variables pointing at a
// scratch database.
func TestStoreWritesRows(t *testing.T) {
	if os.Getenv("EM_TEST_POSTGRES") == "" {
		t.Skip("EM_TEST_POSTGRES not set")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := NewStore(ctx, db)
	require.NoError(t, err)

	experiment := fmt.Sprintf("store_test_%d", time.Now().UnixNano())
	header := Header([]string{"NBR_SUBS"}, true)
	rows := []Row{
		{Experiment: experiment, Algorithm: "gem", Value: 10, Config: []string{"200"}, Matchability: ptr(0.5)},
		{Experiment: experiment, Algorithm: "gem", Value: 12, Config: []string{"200"}, Matchability: ptr(0.25)},
	}
	require.NoError(t, store.Write(ctx, FileMatching, header, rows))

	var (
		count int
		total int64
		subs  string
	)
	err = db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(value), MIN(config->>'NBR_SUBS')
		   FROM benchmark_results WHERE experiment = $1 AND report = 'matching_times'`,
		experiment,
	).Scan(&count, &total, &subs)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(22), total)
	assert.Equal(t, "200", subs)

	_, err = db.DB.ExecContext(ctx, `DELETE FROM benchmark_results WHERE experiment = $1`, experiment)
	require.NoError(t, err)
}
