package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	"github.com/deepak445566/cv/internal/repository"
)

// AddressService manages a user's shipping addresses.
type AddressService struct {
	repo repository.AddressesRepository
}

// NewAddressService wires the address service.
func NewAddressService(repo repository.AddressesRepository) *AddressService {
	return &AddressService{repo: repo}
}

// List returns the user's addresses, default first.
func (s *AddressService) List(ctx context.Context, userID uuid.UUID) ([]entity.Address, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Create validates and stores a new address.
func (s *AddressService) Create(ctx context.Context, userID uuid.UUID, req dto.AddressRequest) (*entity.Address, error) {
	address := &entity.Address{
		UserID:     userID,
		FullName:   strings.TrimSpace(req.FullName),
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      trimmedOrNil(req.Line2),
		City:       strings.TrimSpace(req.City),
		State:      trimmedOrNil(req.State),
		PostalCode: strings.TrimSpace(req.PostalCode),
		IsDefault:  req.IsDefault,
	}
	if address.FullName == "" || address.Line1 == "" || address.City == "" || address.PostalCode == "" {
		return nil, invalid("full_name, line1, city and postal_code are required")
	}

	country, err := normalizeCountry(req.Country)
	if err != nil {
		return nil, err
	}
	address.Country = country

	if phone := trimmedOrNil(req.Phone); phone != nil {
		normalized := normalizePhone(*phone, country)
		if normalized == "" {
			return nil, invalid("invalid phone number")
		}
		address.Phone = &normalized
	}

	return s.repo.Create(ctx, address)
}

// Update patches an address. Phone numbers are re-normalised against the resulting country.
func (s *AddressService) Update(ctx context.Context, userID uuid.UUID, id string, req dto.UpdateAddressRequest) (*entity.Address, error) {
	addressID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("invalid address id")
	}

	var patch repository.AddressPatch
	required := func(value *string, field string) (*string, error) {
		if value == nil {
			return nil, nil
		}
		trimmed := strings.TrimSpace(*value)
		if trimmed == "" {
			return nil, invalid(field + " cannot be empty")
		}
		return &trimmed, nil
	}
	if patch.FullName, err = required(req.FullName, "full_name"); err != nil {
		return nil, err
	}
	if patch.Line1, err = required(req.Line1, "line1"); err != nil {
		return nil, err
	}
	if patch.City, err = required(req.City, "city"); err != nil {
		return nil, err
	}
	if patch.PostalCode, err = required(req.PostalCode, "postal_code"); err != nil {
		return nil, err
	}
	patch.Line2 = clearable(req.Line2)
	patch.State = clearable(req.State)

	if req.Country != nil {
		country, err := normalizeCountry(*req.Country)
		if err != nil {
			return nil, err
		}
		patch.Country = &country
	}

	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone != "" {
			region := ""
			if patch.Country != nil {
				region = *patch.Country
			} else {
				current, err := s.repo.FindByID(ctx, userID, addressID)
				if err != nil {
					return nil, err
				}
				region = current.Country
			}
			phone = normalizePhone(phone, region)
			if phone == "" {
				return nil, invalid("invalid phone number")
			}
		}
		patch.Phone = &phone
	}

	return s.repo.Update(ctx, userID, addressID, patch)
}

// Delete removes an address.
func (s *AddressService) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	addressID, err := uuid.Parse(id)
	if err != nil {
		return invalid("invalid address id")
	}
	return s.repo.Delete(ctx, userID, addressID)
}

// SetDefault marks the address as the user's default.
func (s *AddressService) SetDefault(ctx context.Context, userID uuid.UUID, id string) (*entity.Address, error) {
	addressID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("invalid address id")
	}
	return s.repo.SetDefault(ctx, userID, addressID)
}

// clearable keeps an explicit empty value so the column is reset to NULL.
func clearable(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
