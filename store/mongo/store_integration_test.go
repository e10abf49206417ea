//go:build integration

package mongo

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/store/storetest"
)

var dbSeq atomic.Int64

// Transactions need a replica set, e.g.
// mongodb://localhost:27017/?replicaSet=rs0&directConnection=true
func TestStore(t *testing.T) {
	uri := os.Getenv("WARRANT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("WARRANT_TEST_MONGO_URI not set, skipping MongoDB integration tests")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()

		name := fmt.Sprintf("warrant_test_%d_%d", time.Now().Unix(), dbSeq.Add(1))
		mdb := mongodriver.New()
		require.NoError(t, mdb.Open(ctx, uri, mongodriver.WithDatabase(name)))
		db, err := grove.Open(mdb)
		require.NoError(t, err)

		s := New(db)
		t.Cleanup(func() {
			_ = s.mdb.Database().Drop(context.Background())
			_ = s.Close()
		})
		require.NoError(t, s.Migrate(ctx))
		return s
	})
}
