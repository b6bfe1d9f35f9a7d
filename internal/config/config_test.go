package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		setDefaults()

		cfg, err := FromViper()
		require.NoError(t, err)

		assert.Equal(t, "500.00", cfg.Ledger.MinWithdrawal.StringFixed(2))
		assert.Equal(t, 20, cfg.Ledger.PageSize)
		assert.Equal(t, 100, cfg.Ledger.MaxPageSize)
		assert.Equal(t, 24*time.Hour, cfg.Ledger.WithdrawalWindow)
		assert.Equal(t, "perfect_score", cfg.Rewards["quiz"].Policy)
		assert.Equal(t, "2", cfg.Rewards["quiz"].Multiplier.String())
		assert.Equal(t, "passing_proportional", cfg.Rewards["assessment"].Policy)
		assert.Equal(t, []string{"localhost:9092"}, cfg.Events.KafkaBrokers)
		assert.Equal(t, "postgres", cfg.Storage.Driver)
		assert.Empty(t, cfg.Storage.MemoryStudents)
	})

	t.Run("overrides", func(t *testing.T) {
		viper.Reset()
		setDefaults()
		viper.Set("ledger.min_withdrawal", "750.50")
		viper.Set("storage.memory_students", "1, 2,3")
		viper.Set("events.kafka.brokers", "k1:9092,k2:9092")

		cfg, err := FromViper()
		require.NoError(t, err)
		assert.Equal(t, "750.50", cfg.Ledger.MinWithdrawal.StringFixed(2))
		assert.Equal(t, []int64{1, 2, 3}, cfg.Storage.MemoryStudents)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	})

	t.Run("invalid minimum", func(t *testing.T) {
		viper.Reset()
		setDefaults()
		viper.Set("ledger.min_withdrawal", "five hundred")

		_, err := FromViper()
		assert.ErrorContains(t, err, "ledger.min_withdrawal")
	})

	t.Run("non positive minimum", func(t *testing.T) {
		viper.Reset()
		setDefaults()
		viper.Set("ledger.min_withdrawal", "0")

		_, err := FromViper()
		assert.Error(t, err)
	})

	t.Run("bad student list", func(t *testing.T) {
		viper.Reset()
		setDefaults()
		viper.Set("storage.memory_students", "1,abc")

		_, err := FromViper()
		assert.ErrorContains(t, err, "storage.memory_students")
	})
}
