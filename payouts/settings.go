package payouts

import (
	"context"
	"log/slog"

	"github.com/warp/payout-engine/generic"
)

// UpdateTaxSettings applies in to the coach's tax configuration and returns
// the updated coach. Omitted fields keep their value.
func UpdateTaxSettings(ctx context.Context, coaches generic.CoachStore, id generic.CoachID, in TaxSettingsInput, logger *slog.Logger) (generic.Coach, error) {
	c, err := coaches.Coach(ctx, id)
	if err != nil {
		return generic.Coach{}, err
	}

	if in.InvoiceRegistered != nil {
		c.InvoiceRegistered = *in.InvoiceRegistered
	}
	if in.WithholdingEnabled != nil {
		c.WithholdingEnabled = *in.WithholdingEnabled
	}
	if err := coaches.SaveTaxSettings(ctx, id, generic.TaxSettings{
		InvoiceRegistered:  c.InvoiceRegistered,
		WithholdingEnabled: c.WithholdingEnabled,
	}); err != nil {
		return generic.Coach{}, err
	}

	if logger != nil {
		logger.InfoContext(ctx, "tax settings updated",
			slog.String("coach_id", string(id)),
			slog.Bool("invoice_registered", c.InvoiceRegistered),
			slog.Bool("withholding_enabled", c.WithholdingEnabled))
	}
	return c, nil
}
