// Package feed ranks recent content items into a paginated feed.
//
// A ranking call runs in three stages:
//
//	candidates := items published in the last 48h, newest first, capped at 300
//	profile    := follows and interactions of the user (skipped for anonymous)
//	page       := candidates sorted by score descending, stable, then paginated
//
// Scores are additive:
//
//	score = 10 * 0.5^(age_hours / 6)          // recency, in (0, 10]
//	      + importance                         // in [0, 10], missing = 0
//	      + 8 * followed assets on the item
//	      + 6 * followed countries on the item
//	      + interaction weight                 // save 5, share 4, click 3, view 1, skip -5
//	      + 4 if tagged with the visitor's country
//
// Basic usage:
//
//	cfg, err := feed.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		logger.Warn("using default ranking config", "error", err)
//	}
//	ranker, err := feed.NewRanker(cfg, feed.Sources{
//		Items:        contentRepo,
//		Follows:      followRepo,
//		Interactions: interactionRepo,
//	}, metrics, logger)
//	items, err := ranker.Rank(ctx, feed.Request{UserID: &userID, Page: 1, PageSize: 20})
//
// A user with no follows and no interactions receives exactly the anonymous
// ordering. Equal scores keep candidate order, so ties favour newer items.
package feed
