package db

import (
	"context"
	"errors"
	"testing"

	"playerhub/internal/models"
)

func TestToggleVote(t *testing.T) {
	database := setup(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")

	idea, err := database.CreateIdea(ctx, alice.ID, models.IdeaRequest{Title: "ranked mode", Description: "please"})
	if err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}

	steps := []struct {
		user      int64
		wantVotes int64
		wantVoted bool
	}{
		{bob.ID, 1, true},
		{alice.ID, 2, true},
		{bob.ID, 1, false},
		{bob.ID, 2, true},
	}
	for i, step := range steps {
		vote, err := database.ToggleVote(ctx, idea.ID, step.user)
		if err != nil {
			t.Fatalf("step %d: ToggleVote: %v", i, err)
		}
		if vote.Votes != step.wantVotes || vote.Voted != step.wantVoted {
			t.Errorf("step %d: got votes=%d voted=%v, want %d %v", i, vote.Votes, vote.Voted, step.wantVotes, step.wantVoted)
		}
	}

	if _, err := database.ToggleVote(ctx, 999, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListIdeasSortingAndVotedFlag(t *testing.T) {
	database := setup(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")

	older, err := database.CreateIdea(ctx, alice.ID, models.IdeaRequest{Title: "older"})
	if err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}
	if _, err := database.CreateIdea(ctx, alice.ID, models.IdeaRequest{Title: "newer"}); err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}
	if _, err := database.ToggleVote(ctx, older.ID, bob.ID); err != nil {
		t.Fatalf("ToggleVote: %v", err)
	}

	top, err := database.ListIdeas(ctx, bob.ID, SortTop, 0, 0)
	if err != nil {
		t.Fatalf("ListIdeas: %v", err)
	}
	if top.Total != 2 || top.Results[0].Title != "older" || !top.Results[0].Voted || top.Results[1].Voted {
		t.Errorf("unexpected top ideas: %+v", top.Results)
	}

	newest, err := database.ListIdeas(ctx, alice.ID, SortNewest, 0, 0)
	if err != nil {
		t.Fatalf("ListIdeas: %v", err)
	}
	if newest.Results[0].Title != "newer" || newest.Results[1].Voted {
		t.Errorf("unexpected newest ideas: %+v", newest.Results)
	}
}

func TestDeleteIdea(t *testing.T) {
	database := setup(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")

	idea, err := database.CreateIdea(ctx, alice.ID, models.IdeaRequest{Title: "remove me"})
	if err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}

	if err := database.DeleteIdea(ctx, idea.ID, bob.ID, false); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := database.DeleteIdea(ctx, idea.ID, bob.ID, true); err != nil {
		t.Errorf("admin should be able to delete: %v", err)
	}
	if err := database.DeleteIdea(ctx, idea.ID, alice.ID, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := database.CreateIdea(ctx, alice.ID, models.IdeaRequest{Title: " "}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for blank title, got %v", err)
	}
}

func TestGames(t *testing.T) {
	database := setup(t)
	ctx := context.Background()

	for _, req := range []models.GameRequest{
		{Name: "Super Mario Kart", Genre: "Racing"},
		{Name: "Mario Party", Genre: "Party"},
		{Name: "Dr. Mario", Genre: "Puzzle"},
	} {
		if _, err := database.CreateGame(ctx, req); err != nil {
			t.Fatalf("CreateGame(%s): %v", req.Name, err)
		}
	}
	if _, err := database.CreateGame(ctx, models.GameRequest{Name: "Mario Party"}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	page, err := database.ListGames(ctx, models.GameFilter{Search: "mario"})
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if page.Total != 3 || page.Results[0].Name != "Mario Party" {
		t.Errorf("expected prefix match first, got %+v", page.Results)
	}

	page, err = database.ListGames(ctx, models.GameFilter{Genre: "puzzle"})
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if page.Total != 1 || page.Results[0].Name != "Dr. Mario" {
		t.Errorf("unexpected genre filter result: %+v", page.Results)
	}

	game := page.Results[0]
	updated, err := database.UpdateGame(ctx, game.ID, models.GameRequest{Name: "Dr. Mario World", Genre: "Puzzle", Platform: "Mobile"})
	if err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	if updated.Name != "Dr. Mario World" || updated.Platform != "Mobile" {
		t.Errorf("unexpected update: %+v", updated)
	}

	if err := database.DeleteGame(ctx, game.ID); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if _, err := database.GetGame(ctx, game.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := database.DeleteGame(ctx, game.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
