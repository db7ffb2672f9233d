package interaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/metricshour/metricshour/internal/content"
	"github.com/metricshour/metricshour/internal/db/dbtest"
	"github.com/metricshour/metricshour/internal/interaction"
)

func TestPostgresRepository_Upsert(t *testing.T) {
	conn := dbtest.NewPostgres(t)
	ctx := context.Background()

	item := &content.Item{Title: "Fed holds rates", Category: content.CategoryMacroRelease, PublishedAt: time.Now()}
	if err := content.NewPostgresRepository(conn, nil).Insert(ctx, item); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	repo := interaction.NewPostgresRepository(conn, nil)

	if err := repo.Upsert(ctx, &interaction.Interaction{UserID: 1, ItemID: item.ID, Kind: interaction.KindView}); err != nil {
		t.Fatalf("Upsert(view) error = %v", err)
	}
	dwell := 45
	rec := &interaction.Interaction{UserID: 1, ItemID: item.ID, Kind: interaction.KindShare, DwellSeconds: &dwell}
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert(share) error = %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Upsert() did not set CreatedAt")
	}

	records, err := repo.ListByUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("ListByUser() returned %d records, want 1", len(records))
	}
	if records[0].Kind != interaction.KindShare || records[0].DwellSeconds == nil || *records[0].DwellSeconds != 45 {
		t.Errorf("stored record = %+v, want share with dwell 45", records[0])
	}

	err = repo.Upsert(ctx, &interaction.Interaction{UserID: 1, ItemID: item.ID + 1000, Kind: interaction.KindClick})
	if !errors.Is(err, interaction.ErrItemNotFound) {
		t.Errorf("Upsert(missing item) error = %v, want ErrItemNotFound", err)
	}
}
