package charging

import (
	"context"
	"fmt"

	"github.com/warp/charge-ledger/ledger"
	"go.uber.org/zap"
)

// CreateCharger registers a new charger owned by signer. The record lives at
// ChargerAddress(params.Name), so names are globally unique.
func (p *Program) CreateCharger(ctx context.Context, signer ledger.Identity, params ChargerParams) (*Charger, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("create charger: %w", err)
	}

	addr := p.ChargerAddress(params.Name)
	charger := Charger{Owner: signer}
	charger.apply(params)

	err := p.store.WithTx(ctx, func(tx ledger.Store) error {
		return ledger.CreateRecord(ctx, tx, p.rent, signer.Wallet(), addr, KindCharger, ChargerSize, &charger)
	})
	if err != nil {
		return nil, fmt.Errorf("create charger %q: %w", params.Name, err)
	}

	charger.Address = addr
	p.logger.Info("charger created",
		zap.Stringer("charger", addr),
		zap.String("name", charger.Name),
		zap.Stringer("owner", signer),
	)
	return &charger, nil
}

// UpdateCharger overwrites every mutable field. Only the owner may call it;
// a non-owner gets ErrUnauthorized whatever the params. On failure the
// record is unchanged.
func (p *Program) UpdateCharger(ctx context.Context, signer ledger.Identity, addr ledger.Address, params ChargerParams) (*Charger, error) {
	var charger Charger
	err := p.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := ledger.LoadRecord(ctx, tx, addr, KindCharger, &charger); err != nil {
			return err
		}
		if charger.Owner != signer {
			return ledger.ErrUnauthorized
		}
		if err := params.validate(); err != nil {
			return err
		}
		if params.Name != charger.Name {
			return ledger.ErrImmutableName
		}
		charger.apply(params)
		return ledger.SaveRecord(ctx, tx, addr, KindCharger, &charger)
	})
	if err != nil {
		return nil, fmt.Errorf("update charger %s: %w", addr, err)
	}

	charger.Address = addr
	p.logger.Info("charger updated", zap.Stringer("charger", addr), zap.Stringer("owner", signer))
	return &charger, nil
}

// Charger loads the charger at addr.
func (p *Program) Charger(ctx context.Context, addr ledger.Address) (*Charger, error) {
	var c Charger
	if err := ledger.LoadRecord(ctx, p.store, addr, KindCharger, &c); err != nil {
		return nil, err
	}
	c.Address = addr
	return &c, nil
}

// Chargers lists every registered charger, oldest first.
func (p *Program) Chargers(ctx context.Context) ([]Charger, error) {
	entries, err := p.store.List(ctx, KindCharger)
	if err != nil {
		return nil, err
	}
	out := make([]Charger, 0, len(entries))
	for _, e := range entries {
		var c Charger
		if err := ledger.DecodeEntry(e, KindCharger, &c); err != nil {
			return nil, err
		}
		c.Address = e.Address
		out = append(out, c)
	}
	return out, nil
}

// apply copies every mutable field. Owner is never touched.
func (c *Charger) apply(params ChargerParams) {
	c.Name = params.Name
	c.StreetAddress = params.StreetAddress
	c.City = params.City
	c.State = params.State
	c.Zip = params.Zip
	c.Description = params.Description
	c.ChargerType = params.ChargerType
	c.Power = params.Power
	c.Price = params.Price
	c.ConnectorTypes = params.ConnectorTypes
	c.Latitude = params.Latitude
	c.Longitude = params.Longitude
}

// validate enforces presence of the key and the allocated string caps.
func (params ChargerParams) validate() error {
	if params.Name == "" {
		return fmt.Errorf("%w: name", ledger.ErrMissingField)
	}
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"name", params.Name, MaxNameLen},
		{"address", params.StreetAddress, MaxAddressLen},
		{"city", params.City, MaxCityLen},
		{"state", params.State, MaxStateLen},
		{"zip", params.Zip, MaxZipLen},
		{"description", params.Description, MaxDescriptionLen},
		{"charger_type", params.ChargerType, MaxChargerTypeLen},
		{"connector_types", params.ConnectorTypes, MaxConnectorTypesLen},
	}
	for _, f := range fields {
		if len(f.value) > f.max {
			return &ledger.FieldTooLongError{Field: f.name, Max: f.max, Got: len(f.value)}
		}
	}
	return nil
}
