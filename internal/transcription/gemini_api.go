package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// genaiFileAPI implements fileAPI on the Gemini Developer API client.
type genaiFileAPI struct {
	client *genai.Client
}

// newGenaiFileAPI pins the Gemini Developer backend so a stray
// GOOGLE_GENAI_USE_VERTEXAI in the environment cannot redirect uploads.
// An empty opts.BaseURL keeps the SDK default endpoint.
func newGenaiFileAPI(ctx context.Context, apiKey string, opts genai.HTTPOptions) (*genaiFileAPI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: opts,
	})
	if err != nil {
		return nil, err
	}
	return &genaiFileAPI{client: client}, nil
}

func (g *genaiFileAPI) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out []ModelInfo
	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, ModelInfo{Name: m.Name, Methods: m.SupportedActions})
	}
	return out, nil
}

func (g *genaiFileAPI) Upload(ctx context.Context, path, mimeType, displayName string) (RemoteFile, error) {
	f, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return RemoteFile{}, err
	}
	return toRemoteFile(f), nil
}

func (g *genaiFileAPI) GetFile(ctx context.Context, name string) (RemoteFile, error) {
	f, err := g.client.Files.Get(ctx, name, nil)
	if err != nil {
		return RemoteFile{}, err
	}
	return toRemoteFile(f), nil
}

func (g *genaiFileAPI) DeleteFile(ctx context.Context, name string) error {
	_, err := g.client.Files.Delete(ctx, name, nil)
	return err
}

func (g *genaiFileAPI) Generate(ctx context.Context, model string, file RemoteFile, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		reason := "no candidates"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: %s", types.ErrRemoteProcessing, reason)
	}
	return resp.Text(), nil
}

func toRemoteFile(f *genai.File) RemoteFile {
	rf := RemoteFile{Name: f.Name, URI: f.URI, MimeType: f.MIMEType}
	switch f.State {
	case genai.FileStateActive:
		rf.State = FileReady
	case genai.FileStateFailed:
		rf.State = FileFailed
		if f.Error != nil {
			rf.Reason = f.Error.Message
		}
	default:
		rf.State = FileProcessing
	}
	return rf
}

// classifyAPIError maps provider errors onto the job error taxonomy.
func classifyAPIError(ctx context.Context, op string, err error) error {
	if errors.Is(err, types.ErrRemoteProcessing) {
		return err
	}
	if ctx.Err() != nil {
		return wrapCtxErr(ctx, fmt.Errorf("%s: %v", op, err))
	}
	if credentialsRejected(err) {
		return fmt.Errorf("%w: %s rejected credentials: %v", types.ErrConfig, op, err)
	}
	return fmt.Errorf("%w: %s: %v", types.ErrRemoteProcessing, op, err)
}

func credentialsRejected(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden ||
			apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "API key")
	}
	// Upload formats the create-step APIError into plain text.
	msg := err.Error()
	return strings.Contains(msg, fmt.Sprintf("Error %d,", http.StatusUnauthorized)) ||
		strings.Contains(msg, fmt.Sprintf("Error %d,", http.StatusForbidden)) ||
		strings.Contains(msg, "API key not valid")
}
