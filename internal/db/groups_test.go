package db

import (
	"context"
	"errors"
	"testing"

	"playerhub/internal/models"
)

func TestCreateGroupAddsOwnerFirst(t *testing.T) {
	database := setup(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	carol := mustUser(t, database, "carol")

	group, err := database.CreateGroup(ctx, "  raid night ", alice.ID, []int64{bob.ID, carol.ID, bob.ID, alice.ID})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if group.Name != "raid night" || group.OwnerID != alice.ID {
		t.Errorf("unexpected group: %+v", group)
	}

	ids, err := database.MemberIDs(ctx, group.ID)
	if err != nil {
		t.Fatalf("MemberIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != alice.ID {
		t.Fatalf("expected owner first among 3 members, got %v", ids)
	}

	members, err := database.Members(ctx, group.ID)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if !members[0].IsAdmin || members[0].Username != "alice" || members[1].IsAdmin {
		t.Errorf("only the owner should be admin: %+v", members)
	}
}

func TestCreateGroupValidation(t *testing.T) {
	database := setup(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")

	if _, err := database.CreateGroup(ctx, "   ", alice.ID, nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for blank name, got %v", err)
	}
	if _, err := database.CreateGroup(ctx, "ghosts", alice.ID, []int64{404}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown member, got %v", err)
	}

	groups, err := database.ListUserGroups(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListUserGroups: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("failed creation must not leave a group behind, got %d", len(groups))
	}
}

func TestMembership(t *testing.T) {
	database := setup(t)
	ctx := context.Background()
	owner := mustUser(t, database, "owner")
	bob := mustUser(t, database, "bob")
	carol := mustUser(t, database, "carol")

	group, err := database.CreateGroup(ctx, "squad", owner.ID, nil)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if err := database.AddMember(ctx, group.ID, bob.ID, carol.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-owner must not add members, got %v", err)
	}
	if err := database.AddMember(ctx, group.ID, owner.ID, bob.ID); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := database.AddMember(ctx, group.ID, owner.ID, bob.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate member, got %v", err)
	}
	if err := database.AddMember(ctx, 999, owner.ID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown group, got %v", err)
	}

	if ok, err := database.IsMember(ctx, group.ID, bob.ID); err != nil || !ok {
		t.Errorf("expected bob to be a member: %v, %v", ok, err)
	}
	if ok, err := database.IsMember(ctx, group.ID, carol.ID); err != nil || ok {
		t.Errorf("expected carol not to be a member: %v, %v", ok, err)
	}

	if err := database.AddMember(ctx, group.ID, owner.ID, carol.ID); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := database.RemoveMember(ctx, group.ID, bob.ID, carol.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("member must not remove another member, got %v", err)
	}
	if err := database.RemoveMember(ctx, group.ID, carol.ID, carol.ID); err != nil {
		t.Errorf("member should be able to leave: %v", err)
	}
	if err := database.RemoveMember(ctx, group.ID, owner.ID, bob.ID); err != nil {
		t.Errorf("owner should be able to remove: %v", err)
	}
	if err := database.RemoveMember(ctx, group.ID, owner.ID, owner.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("owner must never be removed, got %v", err)
	}
	if err := database.RemoveMember(ctx, group.ID, owner.ID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for removed member, got %v", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	database := setup(t)
	ctx := context.Background()
	owner := mustUser(t, database, "owner")
	bob := mustUser(t, database, "bob")
	carol := mustUser(t, database, "carol")

	group, err := database.CreateGroup(ctx, "squad", owner.ID, []int64{bob.ID})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if _, err := database.TransferOwnership(ctx, group.ID, bob.ID, bob.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-owner must not transfer, got %v", err)
	}
	if _, err := database.TransferOwnership(ctx, group.ID, owner.ID, carol.ID); !errors.Is(err, ErrInvalid) {
		t.Errorf("transfer to a non-member must fail, got %v", err)
	}

	updated, err := database.TransferOwnership(ctx, group.ID, owner.ID, bob.ID)
	if err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}
	if updated.OwnerID != bob.ID {
		t.Errorf("expected bob to own the group, got %d", updated.OwnerID)
	}

	members, err := database.Members(ctx, group.ID)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	for _, m := range members {
		if m.IsAdmin != (m.UserID == bob.ID) {
			t.Errorf("unexpected admin flag for %s: %v", m.Username, m.IsAdmin)
		}
	}

	// The previous owner is now an ordinary member and may leave.
	if err := database.RemoveMember(ctx, group.ID, owner.ID, owner.ID); err != nil {
		t.Errorf("previous owner should be able to leave: %v", err)
	}
}

func TestDeleteGroup(t *testing.T) {
	database := setup(t)
	ctx := context.Background()
	owner := mustUser(t, database, "owner")
	bob := mustUser(t, database, "bob")

	group, err := database.CreateGroup(ctx, "squad", owner.ID, []int64{bob.ID})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	groupID := group.ID
	if _, err := database.CreateMessage(ctx, &models.Message{SenderID: bob.ID, GroupID: &groupID, Content: "hi"}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if err := database.DeleteGroup(ctx, group.ID, bob.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("member must not delete the group, got %v", err)
	}
	if err := database.DeleteGroup(ctx, group.ID, owner.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}

	if _, err := database.GetGroup(ctx, group.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	history, err := database.GroupHistory(ctx, group.ID, 0, 0)
	if err != nil || len(history) != 0 {
		t.Errorf("expected group messages to be deleted, got %d, %v", len(history), err)
	}
	groups, err := database.ListUserGroups(ctx, bob.ID)
	if err != nil || len(groups) != 0 {
		t.Errorf("expected no groups for bob, got %d, %v", len(groups), err)
	}
}

func TestGroupHistory(t *testing.T) {
	database := setup(t)
	ctx := context.Background()
	owner := mustUser(t, database, "owner")
	group, err := database.CreateGroup(ctx, "squad", owner.ID, nil)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	groupID := group.ID
	for _, content := range []string{"one", "two", "![image](/uploads/x.png)"} {
		msg := &models.Message{SenderID: owner.ID, GroupID: &groupID, Content: content, ContentType: models.ContentTypeOf(content)}
		if _, err := database.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	history, err := database.GroupHistory(ctx, group.ID, 0, 0)
	if err != nil {
		t.Fatalf("GroupHistory: %v", err)
	}
	if len(history) != 3 || history[0].Content != "one" {
		t.Fatalf("unexpected history: %v", contents(history))
	}
	if history[2].ContentType != models.ContentImage || history[2].RecipientID != nil {
		t.Errorf("unexpected image message: %+v", history[2])
	}
}
