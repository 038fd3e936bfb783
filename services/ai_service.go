package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"match-arena-system/models"
	"match-arena-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const defaultOracleURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

// AIService is the boundary to the external vision oracle. It never
// finalizes anything itself: its result becomes either the caller's ballot
// or the input to the AI override once voting deadlocks.
type AIService struct {
	DB     *gorm.DB
	Voting *VotingService

	APIKey string
	APIURL string
	Client *http.Client
}

func NewAIService(db *gorm.DB, voting *VotingService) *AIService {
	apiURL := os.Getenv("AI_ORACLE_URL")
	if apiURL == "" {
		apiURL = defaultOracleURL
	}
	return &AIService{
		DB:     db,
		Voting: voting,
		APIKey: os.Getenv("AI_ORACLE_API_KEY"),
		APIURL: apiURL,
		Client: utils.HTTPClient,
	}
}

// AIResult is the oracle's verdict on a proof image.
type AIResult struct {
	GameIdentified string            `json:"gameIdentified"`
	Analysis       string            `json:"analysis"`
	Scores         map[string]string `json:"scores"`
	Winners        []string          `json:"winners"`
	Confidence     string            `json:"confidence"`
	Reasoning      string            `json:"reasoning"`
}

var gameTypePrompts = map[models.GameType]string{
	models.GameTypeIndoor:  "indoor sports (basketball, table tennis, etc.)",
	models.GameTypeOutdoor: "outdoor sports (running, football, etc.)",
	models.GameTypeOnline:  "online video game (esports)",
	models.GameTypeOffline: "offline game (darts, chess, etc.)",
	models.GameTypeHybrid:  "hybrid game",
}

func buildPrompt(gameType models.GameType, participants []string) string {
	var list strings.Builder
	for i, p := range participants {
		fmt.Fprintf(&list, "Player %d: %s\n", i+1, p)
	}
	return fmt.Sprintf(`You are an AI judge for a competitive gaming platform. Analyze this image/screenshot from a %s match.

Match Participants:
%s
Your task:
1. Identify what game/sport is being played
2. Analyze the visible scores, results, or outcome indicators
3. Determine the winner(s) based on visible evidence

IMPORTANT: You must respond in this exact JSON format:
{
  "gameIdentified": "Name of the game/sport",
  "analysis": "Brief description of what you see",
  "scores": {"player1": "score or status", "player2": "score or status"},
  "winners": ["address1", "address2"],
  "confidence": "high/medium/low",
  "reasoning": "Why you determined these winners"
}

If you cannot determine winners, set winners to an empty array and explain in reasoning.
Only include participant addresses from the list above in the winners array.`,
		gameTypePrompts[gameType], list.String())
}

// AnalyzeProof stores the proof image, asks the oracle for a verdict, and
// validates the returned winners against the roster. The sha256 of the raw
// verdict JSON is the report hash pinned on-chain-equivalent via
// SubmitAIReport.
func (s *AIService) AnalyzeProof(matchID, caller string, image *multipart.FileHeader) (*AIResult, string, string, error) {
	if s.APIKey == "" {
		return nil, "", "", ErrOracleUnavailable
	}

	var match models.Match
	if err := s.DB.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrMatchNotFound
		}
		return nil, "", "", err
	}
	var participants []models.Participant
	if err := s.DB.Where("match_id = ?", matchID).Order("joined_at ASC").Find(&participants).Error; err != nil {
		return nil, "", "", err
	}
	roster := make([]string, len(participants))
	valid := make(map[string]bool, len(participants))
	isParticipant := false
	for i, p := range participants {
		roster[i] = p.Address
		valid[strings.ToLower(p.Address)] = true
		if strings.EqualFold(p.Address, caller) {
			isParticipant = true
		}
	}
	if !isParticipant && match.CreatorAddress != caller {
		return nil, "", "", ErrNotParticipant
	}

	ext := filepath.Ext(image.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := "matches/proofs/" + slug.Make(match.Title) + "/" + uuid.NewString() + ext
	imageURL, err := utils.UploadFileToR2(image, key)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to store proof image: %w", err)
	}

	imageData, contentType, err := readImage(image)
	if err != nil {
		return nil, "", "", err
	}

	result, raw, err := s.queryOracle(match.GameType, roster, imageData, contentType)
	if err != nil {
		return nil, "", "", err
	}

	// The oracle must not be able to pay out a stranger.
	for _, w := range result.Winners {
		if !valid[strings.ToLower(w)] {
			return nil, "", "", ErrInvalidWinner
		}
	}

	sum := sha256.Sum256(raw)
	return result, hex.EncodeToString(sum[:]), imageURL, nil
}

func readImage(fileHeader *multipart.FileHeader) (string, string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", "", fmt.Errorf("failed to read image: %w", err)
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return base64.StdEncoding.EncodeToString(data), contentType, nil
}

func (s *AIService) queryOracle(gameType models.GameType, participants []string, imageBase64, mimeType string) (*AIResult, []byte, error) {
	reqBody := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"text": buildPrompt(gameType, participants)},
				{"inline_data": map[string]any{"mime_type": mimeType, "data": imageBase64}},
			},
		}},
		"generationConfig": map[string]any{
			"temperature":     0.2,
			"maxOutputTokens": 1024,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, err
	}

	resp, err := s.Client.Post(
		fmt.Sprintf("%s?key=%s", s.APIURL, s.APIKey),
		"application/json",
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, nil, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return nil, nil, errors.New("empty oracle response")
	}

	raw, err := extractJSON(envelope.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, nil, err
	}
	var result AIResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil, fmt.Errorf("invalid oracle verdict format: %w", err)
	}
	return &result, raw, nil
}

// extractJSON pulls the JSON object out of the model's free-text reply.
func extractJSON(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errors.New("oracle reply contained no JSON object")
	}
	return []byte(text[start : end+1]), nil
}

// --- HTTP endpoints ---

// AnalyzeProofEndpoint runs the oracle on an uploaded proof image and, when
// the match is in its voting phase and no report exists yet, pins the report
// hash. The winners are returned for the caller to submit as a ballot or an
// AI override; the analysis itself never counts as a vote.
func (s *AIService) AnalyzeProofEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	matchID := c.Params("id")

	image, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image file is required"})
	}

	result, reportHash, imageURL, err := s.AnalyzeProof(matchID, address, image)
	if err != nil {
		return respondErr(c, err)
	}

	reportSubmitted := false
	if err := s.Voting.SubmitAIReport(matchID, address, reportHash); err == nil {
		reportSubmitted = true
	} else if !errors.Is(err, ErrMatchNotVoting) && !errors.Is(err, ErrReportSubmitted) {
		return respondErr(c, err)
	}

	return c.JSON(fiber.Map{
		"result":           result,
		"report_hash":      reportHash,
		"image_url":        imageURL,
		"report_submitted": reportSubmitted,
	})
}
