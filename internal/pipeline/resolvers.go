package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/storage"
	"github.com/google/uuid"
)

// merchantNamespace scopes the synthesized keys of heuristic merchants.
var merchantNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("finance-dashboard:merchant-name"))

// MerchantInput is what a record tells us about a merchant.
type MerchantInput struct {
	ExternalID   string
	Name         string
	CategoryCode string
	City         string
	Country      string
}

// SenderInput is what a record tells us about a transfer counterparty.
type SenderInput struct {
	Name         string
	City         string
	AddressLine3 string
	Country      string
}

// Key is the audit key stored with a new sender: name-city-addressLine3.
func (s SenderInput) Key() string {
	return s.Name + "-" + s.City + "-" + s.AddressLine3
}

// MerchantNameKey returns the deterministic key used for merchants that
// have no external id. Names differing only in case or surrounding space
// share a key.
func MerchantNameKey(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(merchantNamespace, []byte(normalized)).String()
}

// MerchantResolver finds or creates merchants.
type MerchantResolver struct{}

// Resolve returns the id of the merchant described by in. With an external
// id the merchant is upserted and its details overwritten. Without one the
// first merchant with the exact name is reused, or a new one is created
// under a synthesized name key.
func (MerchantResolver) Resolve(ctx context.Context, repo storage.MerchantRepository, in MerchantInput) (int64, error) {
	if in.ExternalID != "" {
		externalID := in.ExternalID
		id, err := repo.UpsertMerchantByExternalID(ctx, &storage.MerchantRow{
			ExternalID:   &externalID,
			Name:         in.Name,
			CategoryCode: in.CategoryCode,
			City:         in.City,
			Country:      in.Country,
		})
		if err != nil {
			return 0, fmt.Errorf("MerchantResolver.Resolve: %w", err)
		}
		return id, nil
	}

	existing, err := repo.FindMerchantByName(ctx, in.Name)
	if err != nil {
		return 0, fmt.Errorf("MerchantResolver.Resolve: finding %q: %w", in.Name, err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	nameKey := MerchantNameKey(in.Name)
	id, err := repo.InsertMerchantByNameKey(ctx, &storage.MerchantRow{
		NameKey:      &nameKey,
		Name:         in.Name,
		CategoryCode: in.CategoryCode,
		City:         in.City,
		Country:      in.Country,
	})
	if err != nil {
		return 0, fmt.Errorf("MerchantResolver.Resolve: %w", err)
	}
	return id, nil
}

// SenderResolver finds or creates transfer counterparties.
type SenderResolver struct{}

// Resolve returns the id of the sender with the same name and city, creating
// it when absent. Existing senders are reused without updates.
func (SenderResolver) Resolve(ctx context.Context, repo storage.SenderRepository, in SenderInput) (int64, error) {
	existing, err := repo.FindSenderByNameCity(ctx, in.Name, in.City)
	if err != nil {
		return 0, fmt.Errorf("SenderResolver.Resolve: finding %q: %w", in.Name, err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	row := &storage.SenderRow{
		Key:  in.Key(),
		Name: in.Name,
		City: in.City,
	}
	if in.Country != "" {
		country := in.Country
		row.Country = &country
	}

	id, err := repo.InsertSender(ctx, row)
	if err != nil {
		return 0, fmt.Errorf("SenderResolver.Resolve: %w", err)
	}
	return id, nil
}

// CategoryMapper maps merchant category codes to subcategories.
type CategoryMapper struct{}

// Map returns the id of the first subcategory whose code equals code, or nil.
func (CategoryMapper) Map(ctx context.Context, repo storage.TaxonomyRepository, code string) (*int64, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}

	sub, err := repo.FindSubcategoryByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("CategoryMapper.Map: %w", err)
	}
	if sub == nil {
		return nil, nil
	}
	id := sub.ID
	return &id, nil
}
