package app

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"trivia-live/internal/domain"
	"trivia-live/internal/metrics"
)

// mediaLookupLimit bounds concurrent lookups against object storage.
const mediaLookupLimit = 8

var mediaName = regexp.MustCompile(`(?i)^(.+?\.(mp3|wav|mp4|jpg|jpeg|png|gif))`)

// CleanMediaName trims a raw media reference down to "name.ext" for known
// media extensions, or drops any query string otherwise.
func CleanMediaName(ref string) string {
	ref = strings.TrimSpace(ref)
	if m := mediaName.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	name, _, _ := strings.Cut(ref, "?")
	return name
}

// MediaNames lists the distinct cleaned filenames the questions reference,
// skipping references that are already URLs.
func MediaNames(questions []domain.Question) []string {
	seen := make(map[string]bool)
	var names []string
	for i := range questions {
		for _, ref := range questions[i].MediaRefs() {
			if *ref == nil || domain.IsURL(**ref) {
				continue
			}
			name := CleanMediaName(**ref)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// ResolveMedia returns a copy of questions with every media field rewritten
// to a fetchable URL. A reference that cannot be found, or whose lookup
// fails, becomes null: a quiz runs without the missing audio or image.
func ResolveMedia(ctx context.Context, resolver MediaResolver, questions []domain.Question, logger *slog.Logger) ([]domain.Question, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]domain.Question, len(questions))
	copy(out, questions)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mediaLookupLimit)
	for i := range out {
		for _, ref := range out[i].MediaRefs() {
			if *ref == nil {
				continue
			}
			raw := strings.TrimSpace(**ref)
			if raw == "" {
				*ref = nil
				continue
			}
			if domain.IsURL(raw) {
				continue
			}
			ref := ref
			g.Go(func() error {
				url, ok, err := resolver.Resolve(gctx, CleanMediaName(raw))
				switch {
				case err != nil:
					metrics.MediaLookups.WithLabelValues("error").Inc()
					logger.Warn("media lookup failed", "ref", raw, "error", err)
					*ref = nil
				case !ok:
					metrics.MediaLookups.WithLabelValues("missing").Inc()
					logger.Warn("media file not found", "ref", raw)
					*ref = nil
				default:
					metrics.MediaLookups.WithLabelValues("url").Inc()
					*ref = &url
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}
