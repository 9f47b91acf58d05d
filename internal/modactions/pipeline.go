package modactions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/modkit/modnotes/internal/removalreasons"
)

var errMissingActions = errors.New("moderation action collaborators are required")

const (
	opPipelineNew     = "modactions.pipeline.new"
	opExecuteRemoval  = "modactions.execute_removal"
	stepRemove        = "remove"
	stepFlair         = "flair"
	stepLog           = "log"
	stepApproveLog    = "approve_log"
	stepComment       = "comment"
	stepDistinguish   = "distinguish"
	stepPM            = "pm"
	stepBan           = "ban"
	pmLinkTrailer     = "\n\n---\n[[Link to your %s](%s)]"
	logPostIDFullname = "t3_%s"
)

// logPostID pulls the submission id out of a removal-log post URL so the log
// post can be approved right after submission.
var logPostID = regexp.MustCompile(`/comments/([^/]+)/`)

// PipelineConfig carries the collaborators for a Pipeline.
type PipelineConfig struct {
	Moderator ContentModerator
	Messenger Messenger
	Flairer   Flairer
	LogPoster LogPoster
	Banner    Banner
	Logger    *zap.Logger
}

// Pipeline runs the removal sequence: remove, flair, public log,
// notification, then an optional ban. Each step reports independently; a
// later failure leaves earlier successful steps in place.
type Pipeline struct {
	moderator ContentModerator
	messenger Messenger
	flairer   Flairer
	logPoster LogPoster
	banner    Banner
	logger    *zap.Logger
}

// NewPipeline validates collaborators and constructs a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Moderator == nil || cfg.Messenger == nil {
		return nil, fmt.Errorf("%s: %w", opPipelineNew, errMissingActions)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		moderator: cfg.Moderator,
		messenger: cfg.Messenger,
		flairer:   cfg.Flairer,
		logPoster: cfg.LogPoster,
		banner:    cfg.Banner,
		logger:    logger,
	}, nil
}

// RemovalRequest describes one removal: the thing being removed, the
// assembled message (variables already substituted), aggregated flair, and
// the public-log settings from the subreddit's configuration.
type RemovalRequest struct {
	Subreddit string
	Fullname  string
	Author    string
	Kind      string
	URL       string
	Link      string
	NotifyBy  NotifyMode
	Message   removalreasons.Message
	FlairText string
	FlairCSS  string
	LogSub    string
	LogReason string
	Ban       bool
	BanReason string
}

// ExecuteRemoval runs the pipeline and returns the per-step statuses. It
// returns an error only for precondition failures before any remote call; a
// failed remote step is reported in its status, not as an error.
func (p *Pipeline) ExecuteRemoval(ctx context.Context, req RemovalRequest) ([]StepStatus, error) {
	if _, err := ParseNotifyMode(string(req.NotifyBy)); err != nil {
		return nil, err
	}
	if req.LogSub != "" && strings.TrimSpace(req.LogReason) == "" {
		return nil, ErrLogReasonMissing
	}

	var statuses []StepStatus
	record := func(step string, err error) bool {
		status := StepStatus{Step: step, OK: err == nil}
		if err != nil {
			status.Detail = err.Error()
			p.logger.Warn("removal step failed",
				zap.String("operation", opExecuteRemoval),
				zap.String("step", step),
				zap.String("subreddit", req.Subreddit),
				zap.String("fullname", req.Fullname),
				zap.Error(err))
		}
		statuses = append(statuses, status)
		return status.OK
	}

	record(stepRemove, p.moderator.Remove(ctx, req.Fullname))

	flairText := strings.TrimSpace(req.FlairText)
	flairCSS := strings.TrimSpace(req.FlairCSS)
	if (flairText != "" || flairCSS != "") && p.flairer != nil {
		record(stepFlair, p.flairer.FlairPost(ctx, req.Fullname, req.Subreddit, flairText, flairCSS))
	}

	body := req.Message.Body
	if req.LogSub != "" && p.logPoster != nil {
		title := removalreasons.SubstituteReason(req.Message.LogTitle, req.LogReason)
		title = removalreasons.StripQuotes(title)
		target := req.URL
		if target == "" {
			target = req.Link
		}
		postURL, err := p.logPoster.PostLink(ctx, target, title, req.LogSub)
		if !record(stepLog, err) {
			// Without the log post there is no {loglink} to offer;
			// the original stops here as well.
			return statuses, nil
		}
		body = removalreasons.SubstituteLogLink(body, postURL)
		if matches := logPostID.FindStringSubmatch(postURL); len(matches) > 1 {
			record(stepApproveLog, p.moderator.Approve(ctx, fmt.Sprintf(logPostIDFullname, matches[1])))
		}
	}

	if strings.TrimSpace(body) == "" {
		return statuses, nil
	}

	if req.NotifyBy == NotifyByReply || req.NotifyBy == NotifyByBoth {
		commentID, err := p.messenger.PostComment(ctx, req.Fullname, body)
		if record(stepComment, err) {
			record(stepDistinguish, p.messenger.DistinguishComment(ctx, commentID))
		}
	}
	if req.NotifyBy == NotifyByPM || req.NotifyBy == NotifyByBoth {
		pmBody := body + fmt.Sprintf(pmLinkTrailer, req.Kind, req.URL)
		record(stepPM, p.messenger.SendPM(ctx, req.Author, req.Message.Subject, pmBody))
	}

	if req.Ban && p.banner != nil {
		banReason := strings.TrimSpace(req.BanReason)
		if banReason == "" {
			banReason = req.LogReason
		}
		note := removalreasons.SubstituteReason(req.Message.BanTitle, banReason)
		record(stepBan, p.banner.BanUser(ctx, req.Subreddit, req.Author, note, body))
	}

	return statuses, nil
}
