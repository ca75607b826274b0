package memory

import (
	"testing"

	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/storetest"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) driven.Store {
		return NewStore()
	})
}
