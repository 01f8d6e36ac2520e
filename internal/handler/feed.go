package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve even without system tzdata

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/service"
)

// parseFeedQuery reads the feed parameters shared by /api/feed and
// /dashboard. tz is an IANA zone name; without it timestamps stay in UTC.
func parseFeedQuery(q url.Values) (service.FeedFilter, *time.Location, error) {
	filter := service.FeedFilter{
		Kind:  service.FeedKind(q.Get("tab")),
		Query: q.Get("q"),
	}

	var err error
	if filter.Limit, err = intParam(q, "limit"); err != nil {
		return filter, nil, err
	}
	if filter.Offset, err = intParam(q, "offset"); err != nil {
		return filter, nil, err
	}

	if raw := q.Get("authors"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				return filter, nil, apperror.ValidationFailed("authors",
					fmt.Sprintf("invalid author id %q", part))
			}
			filter.AuthorIDs = append(filter.AuthorIDs, id)
		}
	}

	loc := time.UTC
	if tz := q.Get("tz"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return filter, nil, apperror.ValidationFailed("tz", fmt.Sprintf("unknown time zone %q", tz))
		}
	}
	return filter, loc, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// inZone converts every timestamp of the feed to loc, in place.
func inZone(posts []model.FeedPost, loc *time.Location) []model.FeedPost {
	for i := range posts {
		p := &posts[i]
		p.CreatedAt = p.CreatedAt.In(loc)
		p.UpdatedAt = p.UpdatedAt.In(loc)
		for j := range p.Comments {
			p.Comments[j].CreatedAt = p.Comments[j].CreatedAt.In(loc)
		}
		for j := range p.Reactions {
			p.Reactions[j].CreatedAt = p.Reactions[j].CreatedAt.In(loc)
		}
	}
	return posts
}
