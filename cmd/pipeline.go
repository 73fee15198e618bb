package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotlake/internal/repositories"
	"github.com/desertthunder/spotlake/internal/tasks"
)

// Fetch lands the raw top-items payload for each time window.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel, err := r.prepare(ctx, cmd, "Spotify.BaseURL", "Spotify.TokenURL", "Storage.Namespace", "Storage.Landing")
	if err != nil {
		return err
	}
	defer cancel()
	defer r.close()

	ev, err := r.scheduleEvent(cmd)
	if err != nil {
		return err
	}

	landing, err := r.bucket(ctx, r.config.Storage.Landing)
	if err != nil {
		return err
	}

	fetcher := tasks.NewTopDataFetcher(tasks.FetcherOpts{
		Client:    r.spotifyClient(),
		Landing:   landing,
		Namespace: r.config.Storage.Namespace,
		Now:       r.now,
		Logger:    r.logger,
	})

	result, err := fetcher.Fetch(ctx, ev)
	if result != nil {
		for _, key := range result.Keys {
			if werr := r.writePlain("landed %s/%s\n", landing.Name(), key); werr != nil {
				return werr
			}
		}
	}
	return err
}

// Normalize rewrites each landed object in the event as a rank-keyed snapshot.
func (r *Runner) Normalize(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel, err := r.prepare(ctx, cmd, "Storage.Landing", "Storage.Raw", "Database.Path")
	if err != nil {
		return err
	}
	defer cancel()
	defer r.close()

	refs, err := r.objectRefs(cmd)
	if err != nil {
		return err
	}

	landing, err := r.bucket(ctx, r.config.Storage.Landing)
	if err != nil {
		return err
	}
	raw, err := r.bucket(ctx, r.config.Storage.Raw)
	if err != nil {
		return err
	}
	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	normalizer := tasks.NewLandingNormalizer(tasks.NormalizerOpts{
		Landing: landing,
		Raw:     raw,
		Rules:   repositories.NewFormatRuleRepository(db),
		Logger:  r.logger,
	})

	result, err := normalizer.Normalize(ctx, refs)
	if result != nil {
		for _, ref := range refs {
			dst, ok := result.Written[ref.Key]
			if !ok {
				continue
			}
			if werr := r.writePlain("%s -> %s/%s\n", ref.Key, raw.Name(), dst); werr != nil {
				return werr
			}
		}
	}
	return err
}

// Recap sends, or with --preview prints, the rank changes between the two newest snapshots.
func (r *Runner) Recap(ctx context.Context, cmd *cli.Command) error {
	required := []string{"Storage.Raw"}
	if !cmd.Bool("preview") {
		required = append(required, deliveryFields(cmd)...)
	}
	ctx, cancel, err := r.prepare(ctx, cmd, required...)
	if err != nil {
		return err
	}
	defer cancel()
	defer r.close()

	ev, err := r.scheduleEvent(cmd)
	if err != nil {
		return err
	}
	raw, err := r.bucket(ctx, r.config.Storage.Raw)
	if err != nil {
		return err
	}

	opts := tasks.RecapOpts{Raw: raw, From: r.config.Delivery.From, Logger: r.logger}
	if cmd.Bool("preview") {
		_, err := tasks.NewRecapComposer(opts).Preview(ctx, ev, r.output)
		return err
	}

	if opts.Dispatcher, err = r.dispatcher(cmd); err != nil {
		return err
	}
	_, err = tasks.NewRecapComposer(opts).Send(ctx, ev)
	return err
}

// ReleaseRadar emails the full-length releases of the release radar playlist.
func (r *Runner) ReleaseRadar(ctx context.Context, cmd *cli.Command) error {
	required := append([]string{"Spotify.BaseURL", "Spotify.TokenURL"}, deliveryFields(cmd)...)
	ctx, cancel, err := r.prepare(ctx, cmd, required...)
	if err != nil {
		return err
	}
	defer cancel()

	ev, err := r.scheduleEvent(cmd)
	if err != nil {
		return err
	}
	dispatcher, err := r.dispatcher(cmd)
	if err != nil {
		return err
	}

	playlistID := cmd.String("playlist")
	if playlistID == "" {
		playlistID = r.config.Spotify.ReleaseRadarPlaylistID
	}

	composer := tasks.NewReleaseRadarComposer(tasks.RadarOpts{
		Client:     r.spotifyClient(),
		PlaylistID: playlistID,
		Dispatcher: dispatcher,
		From:       r.config.Delivery.From,
		Logger:     r.logger,
	})

	_, err = composer.Send(ctx, ev)
	return err
}

// Rotate adds yesterday's top short-term tracks to this year's high rotation playlist.
func (r *Runner) Rotate(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel, err := r.prepare(ctx, cmd,
		"Spotify.BaseURL", "Spotify.TokenURL", "Spotify.UserID", "Storage.Namespace", "Storage.Landing")
	if err != nil {
		return err
	}
	defer cancel()
	defer r.close()

	landing, err := r.bucket(ctx, r.config.Storage.Landing)
	if err != nil {
		return err
	}

	updater := tasks.NewRotationUpdater(tasks.RotationOpts{
		Client:    r.spotifyClient(),
		Landing:   landing,
		Namespace: r.config.Storage.Namespace,
		UserID:    r.config.Spotify.UserID,
		Now:       r.now,
		Logger:    r.logger,
	})

	result, err := updater.Update(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	verb := "updated"
	if result.Created {
		verb = "created"
	}
	return r.writePlain("%s %q (%s): added %d track(s) %s\n",
		verb, result.PlaylistName, result.PlaylistID, len(result.Added), strings.Join(result.Added, " "))
}

// Stage promotes raw objects that have a data contract into the staging area.
func (r *Runner) Stage(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel, err := r.prepare(ctx, cmd, "Storage.Raw", "Storage.Staging", "Database.Path")
	if err != nil {
		return err
	}
	defer cancel()
	defer r.close()

	refs, err := r.objectRefs(cmd)
	if err != nil {
		return err
	}

	raw, err := r.bucket(ctx, r.config.Storage.Raw)
	if err != nil {
		return err
	}
	staging, err := r.bucket(ctx, r.config.Storage.Staging)
	if err != nil {
		return err
	}
	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	mover := tasks.NewStagingMover(tasks.StagingOpts{
		Raw:       raw,
		Staging:   staging,
		Contracts: repositories.NewDataContractRepository(db),
		Logger:    r.logger,
	})

	result, err := mover.Move(ctx, refs)
	if result != nil {
		for _, key := range result.Moved {
			if werr := r.writePlain("moved %s -> %s/%s\n", key, staging.Name(), key); werr != nil {
				return werr
			}
		}
		if len(result.Skipped) > 0 {
			r.logger.Info("objects without a data contract left in place", "count", len(result.Skipped))
		}
	}
	return err
}
