package seeder

import (
	"context"
	"log"

	"github.com/vnmchuo/llm-relay/internal/auth"
)

const (
	TestAPIKey   = "test-api-key-12345"
	TestTenantID = "00000000-0000-0000-0000-000000000001"
	TestOrgID    = "00000000-0000-0000-0000-0000000000a1"
)

// SeedTestAPIKey creates the development API key. An existing key is left
// alone.
func SeedTestAPIKey(ctx context.Context, store auth.Store) error {
	apiKey := &auth.APIKey{
		TenantID: TestTenantID,
		OrgID:    TestOrgID,
		KeyHash:  auth.HashKey(TestAPIKey),
		Active:   true,
	}

	if err := store.Create(ctx, apiKey); err != nil {
		log.Printf("[seeder] API key may already exist, skipping: %v", err)
		return err
	}
	log.Printf("[seeder] test API key created for tenant %s (org %s)", TestTenantID, TestOrgID)
	log.Printf("[seeder] key: %s", TestAPIKey)
	return nil
}
