package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"match-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConsensusThreshold is the percentage of total voters that must back one
// canonical ballot for it to be accepted. 51 keeps two ballots from ever
// reaching consensus in the same session.
const ConsensusThreshold = 51

type VotingService struct {
	DB *gorm.DB
}

func NewVotingService(db *gorm.DB) *VotingService {
	return &VotingService{DB: db}
}

// canonicalBallot normalizes a winner list so identical winner sets tally
// together regardless of order or casing.
func canonicalBallot(winners []string) (string, []string, error) {
	seen := make(map[string]bool, len(winners))
	var addrs []string
	for _, w := range winners {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		addrs = append(addrs, w)
	}
	if len(addrs) == 0 {
		return "", nil, ErrEmptyBallot
	}
	sort.Strings(addrs)
	return strings.Join(addrs, ","), addrs, nil
}

func participantSetTx(tx *gorm.DB, matchID string) (map[string]bool, error) {
	var participants []models.Participant
	if err := tx.Where("match_id = ?", matchID).Find(&participants).Error; err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(participants))
	for _, p := range participants {
		set[strings.ToLower(p.Address)] = true
	}
	return set, nil
}

func findSessionTx(tx *gorm.DB, matchID string) (*models.VotingSession, error) {
	var session models.VotingSession
	if err := tx.First(&session, "match_id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoVotingSession
		}
		return nil, err
	}
	return &session, nil
}

// SubmitVote records one ballot per participant. Votes after the window
// closes are rejected, so the terminal tally is well defined.
func (s *VotingService) SubmitVote(matchID, voter string, winners []string, aiAssisted bool) (*models.Vote, error) {
	ballot, addrs, err := canonicalBallot(winners)
	if err != nil {
		return nil, err
	}

	vote := &models.Vote{
		ID:           uuid.NewString(),
		MatchID:      matchID,
		VoterAddress: strings.ToLower(voter),
		VotedWinners: ballot,
		AIAssisted:   aiAssisted,
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		match, err := findMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusVoting {
			return ErrMatchNotVoting
		}
		session, err := findSessionTx(tx, matchID)
		if err != nil {
			return err
		}
		if session.Finalized {
			return ErrAlreadyFinalized
		}
		if time.Now().After(session.VotingEndTime) {
			return ErrVotingClosed
		}

		participants, err := participantSetTx(tx, matchID)
		if err != nil {
			return err
		}
		if !participants[vote.VoterAddress] {
			return ErrNotParticipant
		}
		for _, a := range addrs {
			if !participants[a] {
				return ErrInvalidWinner
			}
		}

		var existing models.Vote
		if err := tx.First(&existing, "match_id = ? AND voter_address = ?", matchID, vote.VoterAddress).Error; err == nil {
			return ErrAlreadyVoted
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(vote).Error; err != nil {
			return err
		}
		if err := tx.Model(session).Update("votes_received", gorm.Expr("votes_received + 1")).Error; err != nil {
			return err
		}
		return appendEvent(tx, matchID, models.EventVoteCasted, fiber.Map{
			"match_id":      matchID,
			"voter":         vote.VoterAddress,
			"voted_winners": addrs,
			"ai_assisted":   aiAssisted,
		})
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// tallyVotes groups ballots by canonical winner set and returns the
// best-supported set with its vote count.
func tallyVotes(votes []models.Vote) (string, int) {
	counts := make(map[string]int, len(votes))
	for _, v := range votes {
		counts[v.VotedWinners]++
	}
	var best string
	var bestCount int
	for ballot, n := range counts {
		// Deterministic pick on equal counts; a tied leader can never meet a
		// majority threshold anyway.
		if n > bestCount || (n == bestCount && ballot < best) {
			best, bestCount = ballot, n
		}
	}
	return best, bestCount
}

// FinalizeVoting tallies once the session is finalizable: every voter voted,
// or the window expired. Consensus distributes rewards and completes the
// match in the same transaction; no consensus leaves the match eligible for
// the AI fallback or a no-winner completion.
func (s *VotingService) FinalizeVoting(matchID string) (*models.VotingSession, error) {
	var session *models.VotingSession
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		match, err := findMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusVoting {
			return ErrMatchNotVoting
		}
		session, err = findSessionTx(tx, matchID)
		if err != nil {
			return err
		}
		if session.Finalized {
			return ErrAlreadyFinalized
		}
		if session.VotesReceived < session.TotalVoters && time.Now().Before(session.VotingEndTime) {
			return ErrVotingNotFinalizable
		}

		var votes []models.Vote
		if err := tx.Where("match_id = ?", matchID).Find(&votes).Error; err != nil {
			return err
		}
		best, bestCount := tallyVotes(votes)
		consensus := best != "" && bestCount*100 >= ConsensusThreshold*session.TotalVoters

		now := time.Now()
		session.Finalized = true
		session.FinalizedAt = &now
		if consensus {
			session.ConsensusReached = true
			session.FinalizedBy = models.FinalizedByVotes
			session.FinalWinners = best
		}
		if err := tx.Model(session).Updates(map[string]any{
			"finalized":         true,
			"finalized_at":      session.FinalizedAt,
			"consensus_reached": session.ConsensusReached,
			"finalized_by":      session.FinalizedBy,
			"final_winners":     session.FinalWinners,
		}).Error; err != nil {
			return err
		}

		winners := splitWinners(session.FinalWinners)
		if err := appendEvent(tx, matchID, models.EventVotingFinalized, fiber.Map{
			"match_id":          matchID,
			"winners":           winners,
			"total_votes":       len(votes),
			"consensus_reached": consensus,
		}); err != nil {
			return err
		}
		if !consensus {
			return nil
		}
		if err := distributeRewardsTx(tx, match, winners); err != nil {
			return err
		}
		return completeMatchTx(tx, match)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// FinalizeWithAI is the oracle override of last resort: creator-gated and
// only reachable after voting finalized without consensus. The AI result is
// authoritative here precisely because it never also counted as a ballot.
func (s *VotingService) FinalizeWithAI(matchID, caller string, winners []string) (*models.VotingSession, error) {
	ballot, addrs, err := canonicalBallot(winners)
	if err != nil {
		return nil, err
	}
	var session *models.VotingSession
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		match, err := findMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if match.CreatorAddress != caller {
			return ErrNotCreator
		}
		if match.Status != models.MatchStatusVoting {
			return ErrMatchNotVoting
		}
		session, err = findSessionTx(tx, matchID)
		if err != nil {
			return err
		}
		if !session.Finalized {
			return ErrNotFinalized
		}
		if session.ConsensusReached {
			return ErrConsensusReached
		}

		participants, err := participantSetTx(tx, matchID)
		if err != nil {
			return err
		}
		for _, a := range addrs {
			if !participants[a] {
				return ErrInvalidWinner
			}
		}

		session.FinalizedBy = models.FinalizedByAI
		session.FinalWinners = ballot
		if err := tx.Model(session).Updates(map[string]any{
			"finalized_by":  session.FinalizedBy,
			"final_winners": session.FinalWinners,
		}).Error; err != nil {
			return err
		}
		if err := appendEvent(tx, matchID, models.EventVotingFinalized, fiber.Map{
			"match_id":          matchID,
			"winners":           addrs,
			"total_votes":       session.VotesReceived,
			"consensus_reached": false,
			"finalized_by":      models.FinalizedByAI,
		}); err != nil {
			return err
		}
		if err := distributeRewardsTx(tx, match, addrs); err != nil {
			return err
		}
		return completeMatchTx(tx, match)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SubmitAIReport pins the oracle response hash to the match during voting.
// One-way: a second report cannot replace the first.
func (s *VotingService) SubmitAIReport(matchID, caller, reportHash string) error {
	if reportHash == "" {
		return fmt.Errorf("%w: report hash is required", ErrValidation)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		match, err := findMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusVoting {
			return ErrMatchNotVoting
		}
		participants, err := participantSetTx(tx, matchID)
		if err != nil {
			return err
		}
		if !participants[strings.ToLower(caller)] && match.CreatorAddress != caller {
			return ErrNotParticipant
		}
		if match.AIReportSubmitted {
			return ErrReportSubmitted
		}
		if err := tx.Model(match).Updates(map[string]any{
			"ai_report_hash":      reportHash,
			"ai_report_submitted": true,
		}).Error; err != nil {
			return err
		}
		return appendEvent(tx, matchID, models.EventAIReportSubmitted, fiber.Map{
			"match_id":    matchID,
			"report_hash": reportHash,
			"submitter":   caller,
		})
	})
}

func splitWinners(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// --- Views ---

func (s *VotingService) GetVotingSession(matchID string) (*models.VotingSession, error) {
	return findSessionTx(s.DB, matchID)
}

func (s *VotingService) HasVoted(matchID, address string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Vote{}).
		Where("match_id = ? AND voter_address = ?", matchID, strings.ToLower(address)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *VotingService) GetFinalWinners(matchID string) ([]string, error) {
	session, err := s.GetVotingSession(matchID)
	if err != nil {
		return nil, err
	}
	return splitWinners(session.FinalWinners), nil
}

// --- HTTP endpoints ---

func (s *VotingService) SubmitVoteEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var req struct {
		Winners    []string `json:"winners"`
		AIAssisted bool     `json:"ai_assisted"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	vote, err := s.SubmitVote(c.Params("id"), address, req.Winners, req.AIAssisted)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(vote)
}

func (s *VotingService) FinalizeVotingEndpoint(c *fiber.Ctx) error {
	session, err := s.FinalizeVoting(c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(session)
}

func (s *VotingService) FinalizeWithAIEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var req struct {
		Winners []string `json:"winners"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	session, err := s.FinalizeWithAI(c.Params("id"), address, req.Winners)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(session)
}

func (s *VotingService) SubmitAIReportEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	var req struct {
		ReportHash string `json:"report_hash"`
	}
	if err := c.BodyParser(&req); err != nil || req.ReportHash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "report_hash is required"})
	}
	if err := s.SubmitAIReport(c.Params("id"), address, req.ReportHash); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "AI report submitted", "match_id": c.Params("id")})
}

func (s *VotingService) GetSessionEndpoint(c *fiber.Ctx) error {
	session, err := s.GetVotingSession(c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(session)
}

func (s *VotingService) HasVotedEndpoint(c *fiber.Ctx) error {
	address := c.Locals("user_address").(string)
	voted, err := s.HasVoted(c.Params("id"), address)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"match_id": c.Params("id"), "has_voted": voted})
}

func (s *VotingService) GetFinalWinnersEndpoint(c *fiber.Ctx) error {
	winners, err := s.GetFinalWinners(c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"match_id": c.Params("id"), "winners": winners})
}
