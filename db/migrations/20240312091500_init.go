package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/zangapay/escrow.go/db/models"
)

/* Since this init will reflect the latest model fields when run on a fresh db
make sure that when you add/remove columns in subsequent migrations IfNotExists/IfExists is used
otherwise it's going to result in errors.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, model := range []interface{}{
			(*models.User)(nil),
			(*models.Invoice)(nil),
			(*models.Milestone)(nil),
			(*models.ReleaseToken)(nil),
			(*models.Dispute)(nil),
			(*models.Payout)(nil),
			(*models.ReferralEarning)(nil),
			(*models.ReferralBalance)(nil),
			(*models.Withdrawal)(nil),
		} {
			if _, err := db.NewCreateTable().Model(model).Exec(ctx); err != nil {
				return err
			}
		}

		// gapless milestone ordinals, one per invoice
		if _, err := db.NewCreateIndex().
			Model((*models.Milestone)(nil)).
			Index("milestones_invoice_ordinal_idx").
			Column("invoice_id", "ordinal").
			Unique().
			Exec(ctx); err != nil {
			return err
		}

		return nil
	}, nil)
}
