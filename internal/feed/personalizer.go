package feed

import (
	"context"
	"fmt"

	"github.com/metricshour/metricshour/internal/follow"
	"github.com/metricshour/metricshour/internal/interaction"
)

// FollowSource lists a user's follows.
type FollowSource interface {
	ListByUser(ctx context.Context, userID int64) ([]follow.Follow, error)
}

// InteractionSource lists a user's interaction records.
type InteractionSource interface {
	ListByUser(ctx context.Context, userID int64) ([]interaction.Interaction, error)
}

// Data source names reported in SourceError.
const (
	SourceItems        = "items"
	SourceFollows      = "follows"
	SourceInteractions = "interactions"
)

// SourceError reports which data source failed during ranking.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Personalizer loads the follow sets and interaction map of a user.
type Personalizer struct {
	follows      FollowSource
	interactions InteractionSource
}

// NewPersonalizer creates a Personalizer.
func NewPersonalizer(follows FollowSource, interactions InteractionSource) *Personalizer {
	return &Personalizer{
		follows:      follows,
		interactions: interactions,
	}
}

// Load builds the profile for userID. A user with no follows and no
// interactions gets an empty profile, which scores exactly like anonymous.
// Any source failure fails the whole load.
func (p *Personalizer) Load(ctx context.Context, userID int64) (*Profile, error) {
	follows, err := p.follows.ListByUser(ctx, userID)
	if err != nil {
		return nil, &SourceError{Source: SourceFollows, Err: err}
	}
	records, err := p.interactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, &SourceError{Source: SourceInteractions, Err: err}
	}

	return &Profile{
		UserID:       userID,
		Follows:      follow.Partition(follows),
		Interactions: interaction.IndexByItem(records),
	}, nil
}
