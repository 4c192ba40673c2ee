package database_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"sao-connect/internal/database"
	"sao-connect/internal/database/storetest"
	"sao-connect/internal/utils"

	"github.com/stretchr/testify/require"
)

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	n := 0
	factory := func(t *testing.T) database.Adapter {
		n++
		name := fmt.Sprintf("sao_connect_test_%d_%d", time.Now().UnixNano(), n)
		db, err := database.NewMongoDB(uri, name, utils.DiscardLogger())
		require.NoError(t, err)
		ctx := context.Background()
		require.NoError(t, db.InitializeTables(ctx))
		t.Cleanup(func() {
			db.Client.Database(name).Drop(ctx)
			db.Close(ctx)
		})
		return db
	}

	t.Run("Messages", func(t *testing.T) { storetest.RunMessageStoreSuite(t, factory) })
	t.Run("Users", func(t *testing.T) { storetest.RunUserDirectorySuite(t, factory) })
}
