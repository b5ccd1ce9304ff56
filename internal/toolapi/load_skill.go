package toolapi

import (
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/javi11/skillvault/internal/api"
	"github.com/javi11/skillvault/internal/database"
	sharedErrors "github.com/javi11/skillvault/internal/errors"
	"github.com/javi11/skillvault/internal/indexer"
)

const (
	includedText    = "text"
	includedBase64  = "base64"
	includedOmitted = "omitted"

	omittedTooLarge = "too_large"
)

var attachmentDirs = []string{"attachments/", "assets/", "docs/"}

// LoadSkillRequest is the body of POST /load-skill
type LoadSkillRequest struct {
	Paths                 []string `json:"paths"`
	IncludeAllAttachments bool     `json:"includeAllAttachments"`
	MaxAttachmentBytes    *int64   `json:"maxAttachmentBytes"`
	MaxFiles              *int     `json:"maxFiles"`
}

// Attachment is a file offered alongside the skill document
type Attachment struct {
	Path         string `json:"path"`
	InternalPath string `json:"internalPath,omitempty"`
	IsText       bool   `json:"isText"`
	Size         *int64 `json:"size,omitempty"`
}

// IncludedFile is a requested attachment with its content
type IncludedFile struct {
	Path   string `json:"path"`
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Base64 string `json:"base64,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Limits echoes the limits applied to a load
type Limits struct {
	MaxFiles           int   `json:"maxFiles"`
	MaxAttachmentBytes int64 `json:"maxAttachmentBytes"`
}

// LoadSkillResponse is everything a tool needs to use a skill
type LoadSkillResponse struct {
	Skill       SkillView      `json:"skill"`
	SkillMdPath *string        `json:"skillMdPath"`
	SkillMd     *string        `json:"skillMd"`
	Attachments []Attachment   `json:"attachments"`
	Included    []IncludedFile `json:"included"`
	Limits      Limits         `json:"limits"`
}

// handleLoadSkill handles POST /load-skill?skillId=
func (s *Server) handleLoadSkill(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req LoadSkillRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return api.RespondBadRequest(c, api.ErrMsgBadRequest, err.Error())
		}
	}

	entry, ok, err := s.grantedEntry(c)
	if !ok {
		return err
	}
	if !entry.HasArchive() {
		return api.RespondConflict(c, "Skill has no stored archive", entry.ID)
	}

	limits := Limits{MaxFiles: s.config.MaxFiles, MaxAttachmentBytes: s.config.MaxAttachmentBytes}
	if req.MaxFiles != nil && *req.MaxFiles > 0 {
		limits.MaxFiles = *req.MaxFiles
	}
	if req.MaxAttachmentBytes != nil && *req.MaxAttachmentBytes >= 0 {
		limits.MaxAttachmentBytes = *req.MaxAttachmentBytes
	}

	nodes, err := s.catalog.ListNodes(ctx, entry.ID)
	if err != nil {
		return api.RespondInternalError(c, "Failed to list skill files", err.Error())
	}

	files := make([]*database.ArchiveNode, 0, len(nodes))
	for _, n := range nodes {
		if !n.IsDir() {
			files = append(files, n)
		}
	}
	if len(files) > limits.MaxFiles {
		files = files[:limits.MaxFiles]
	}

	resp := LoadSkillResponse{
		Skill:       newSkillView(entry),
		Attachments: []Attachment{},
		Included:    []IncludedFile{},
		Limits:      limits,
	}

	doc := skillDocument(files)
	if doc != nil {
		resp.SkillMdPath = &doc.Path
		content, err := s.reader.ReadNode(ctx, doc)
		switch {
		case err == nil:
			text := content.Text()
			resp.SkillMd = &text
		case errors.Is(err, sharedErrors.ErrContentNotLocatable):
			s.logger.WarnContext(ctx, "Skill document is not locatable", "entry_id", entry.ID, "path", doc.Path)
		default:
			return api.RespondInternalError(c, "Failed to read skill document", err.Error())
		}
	}

	for _, n := range files {
		if n == doc || !isAttachmentCandidate(n) {
			continue
		}
		resp.Attachments = append(resp.Attachments, Attachment{
			Path:         n.Path,
			InternalPath: deref(n.InternalPath),
			IsText:       isTextNode(n),
			Size:         n.SizeBytes,
		})
	}

	for _, n := range s.requestedFiles(files, resp.Attachments, req) {
		included, err := s.include(ctx, n, limits.MaxAttachmentBytes)
		if err != nil {
			if errors.Is(err, sharedErrors.ErrContentNotLocatable) {
				continue
			}
			return api.RespondInternalError(c, "Failed to read attachment", err.Error())
		}
		resp.Included = append(resp.Included, included)
	}

	return api.RespondSuccess(c, resp)
}

// requestedFiles resolves the request to file nodes. Paths match either the
// canonical path or the internal archive path; unknown paths are ignored.
func (s *Server) requestedFiles(files []*database.ArchiveNode, attachments []Attachment, req LoadSkillRequest) []*database.ArchiveNode {
	wanted := req.Paths
	if req.IncludeAllAttachments {
		wanted = make([]string, 0, len(attachments))
		for _, a := range attachments {
			wanted = append(wanted, a.Path)
		}
	}

	byPath := make(map[string]*database.ArchiveNode, len(files)*2)
	for _, n := range files {
		byPath[n.Path] = n
		if n.InternalPath != nil {
			if _, taken := byPath[*n.InternalPath]; !taken {
				byPath[*n.InternalPath] = n
			}
		}
	}

	seen := make(map[*database.ArchiveNode]struct{}, len(wanted))
	out := make([]*database.ArchiveNode, 0, len(wanted))
	for _, p := range wanted {
		n, ok := byPath[p]
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (s *Server) include(ctx context.Context, n *database.ArchiveNode, maxBytes int64) (IncludedFile, error) {
	text := isTextNode(n)
	if !text && n.SizeBytes != nil && *n.SizeBytes > maxBytes {
		return IncludedFile{Path: n.Path, Type: includedOmitted, Reason: omittedTooLarge}, nil
	}

	content, err := s.reader.ReadNode(ctx, n)
	if err != nil {
		return IncludedFile{}, err
	}

	if text {
		return IncludedFile{Path: n.Path, Type: includedText, Text: content.Text()}, nil
	}
	if int64(len(content.Data)) > maxBytes {
		return IncludedFile{Path: n.Path, Type: includedOmitted, Reason: omittedTooLarge}, nil
	}
	return IncludedFile{Path: n.Path, Type: includedBase64, Base64: base64.StdEncoding.EncodeToString(content.Data)}, nil
}

// skillDocument picks the shallowest SKILL.md, falling back to the shallowest README.md
func skillDocument(files []*database.ArchiveNode) *database.ArchiveNode {
	for _, name := range []string{"skill.md", "readme.md"} {
		var matches []*database.ArchiveNode
		for _, n := range files {
			p := strings.ToLower(n.Path)
			if p == name || strings.HasSuffix(p, "/"+name) {
				matches = append(matches, n)
			}
		}
		if len(matches) > 0 {
			return slices.MinFunc(matches, func(a, b *database.ArchiveNode) int {
				return cmp.Or(cmp.Compare(a.Depth, b.Depth), cmp.Compare(a.Path, b.Path))
			})
		}
	}
	return nil
}

func isAttachmentCandidate(n *database.ArchiveNode) bool {
	p := strings.ToLower(n.Path)
	for _, dir := range attachmentDirs {
		if strings.HasPrefix(p, dir) || strings.Contains(p, "/"+dir) {
			return true
		}
	}
	return !isTextNode(n)
}

func isTextNode(n *database.ArchiveNode) bool {
	return indexer.IsText(deref(n.ContentType), deref(n.Ext))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
