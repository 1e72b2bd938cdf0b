package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/projecthub/invited/internal/config"
	"github.com/projecthub/invited/internal/database"
	"github.com/projecthub/invited/internal/datastore"
	"github.com/projecthub/invited/internal/repository"
	"github.com/projecthub/invited/pkg/model"
)

func main() {
	conf := flag.String("config", "invited.yml", "name of config file")
	file := flag.String("file", "", "members file, members_file from config by default")
	project := flag.String("project", "", "project id")
	user := flag.String("user", "", "user id")
	role := flag.String("role", "", "role: "+roleNames())
	remove := flag.Bool("delete", false, "remove the user from the project")
	token := flag.Bool("token", false, "print a bearer token for the user")
	email := flag.String("email", "", "email claim of the token")
	ttl := flag.Duration("ttl", time.Hour*24, "token lifetime")
	expire := flag.Duration("expire", 0, "expire pending invitations older than this")
	pending := flag.Bool("pending", false, "list pending invitations in the database")
	revoke := flag.String("revoke", "", "revoke the pending invitation with this token")
	dbMembers := flag.Bool("db-members", false, "list memberships loaded into the database")
	limit := flag.Int("limit", 100, "max rows to list")
	flag.Parse()

	cfg := config.NewAppConfig()
	cfg.Load(*conf)

	if err := cfg.LoadEnv("INVITED"); err != nil {
		fail(err)
	}

	if *file == "" {
		*file = cfg.MembersFile()
	}

	var err error

	switch {
	case *token:
		err = printToken(cfg.Data().JWTSecret, &model.User{ID: *user, Email: *email}, *ttl)
	case *expire > 0:
		err = withDB(cfg.DB(), func(dbm *database.DatabaseManager) error { return expirePending(dbm, *expire) })
	case *pending:
		err = withDB(cfg.DB(), func(dbm *database.DatabaseManager) error {
			return listPending(dbm, *project, *email, *limit)
		})
	case *revoke != "":
		err = withDB(cfg.DB(), func(dbm *database.DatabaseManager) error { return revokeInvitation(dbm, *revoke) })
	case *dbMembers:
		err = withDB(cfg.DB(), func(dbm *database.DatabaseManager) error {
			return listDBMembers(dbm, *project, *user, *limit)
		})
	case *user == "" || *project == "":
		err = list(*file)
	case *remove:
		err = removeMember(*file, *project, *user)
	default:
		err = setMember(*file, &model.Membership{ProjectID: *project, UserID: *user, Role: model.Role(*role)})
	}

	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func list(file string) error {
	members, err := repository.ReadMembers(file)
	if err != nil {
		return err
	}

	for _, m := range members {
		fmt.Printf("%s\t%s\t%s\n", m.ProjectID, m.UserID, m.Role)
	}

	return nil
}

func setMember(file string, member *model.Membership) error {
	if !member.Role.Valid() {
		return fmt.Errorf("invalid role %q", member.Role)
	}

	members, err := repository.ReadMembers(file)
	if err != nil {
		return err
	}

	var found bool

	for _, m := range members {
		if m.ProjectID == member.ProjectID && m.UserID == member.UserID {
			m.Role = member.Role
			found = true

			break
		}
	}

	if !found {
		members = append(members, member)
	}

	return repository.WriteMembers(file, members)
}

func removeMember(file, project, user string) error {
	members, err := repository.ReadMembers(file)
	if err != nil {
		return err
	}

	res := make([]*model.Membership, 0, len(members))

	for _, m := range members {
		if m.ProjectID != project || m.UserID != user {
			res = append(res, m)
		}
	}

	if len(res) == len(members) {
		return fmt.Errorf("user %s is not a member of %s", user, project)
	}

	return repository.WriteMembers(file, res)
}

func printToken(secret string, user *model.User, ttl time.Duration) error {
	if secret == "" {
		return fmt.Errorf("data.jwt_secret is not set")
	}

	if user.ID == "" {
		return fmt.Errorf("user is required")
	}

	tok, err := datastore.IssueToken(secret, user, ttl)
	if err != nil {
		return err
	}

	fmt.Println(tok)

	return nil
}

func withDB(dsn string, f func(dbm *database.DatabaseManager) error) error {
	db, err := database.GetDatabase(dsn, false)
	if err != nil {
		return err
	}

	dbm := database.New(db)

	if err := dbm.Migrate(); err != nil {
		return err
	}

	return f(dbm)
}

func expirePending(dbm *database.DatabaseManager, age time.Duration) error {
	n, err := dbm.ExpirePending(time.Now().Add(-age))
	if err != nil {
		return err
	}

	fmt.Printf("%d invitations expired\n", n)

	return nil
}

func listPending(dbm *database.DatabaseManager, project, email string, limit int) error {
	q := dbm.InvitationQuery().Pending().Project(project).Email(email)

	for _, inv := range q.Order("created_at").Limit(limit).Get() {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n", inv.CreatedAt.Format(time.RFC3339), inv.ProjectID, inv.Email, inv.Role, inv.InvitedBy, inv.Token)
	}

	fmt.Printf("%d pending\n", dbm.InvitationQuery().Pending().Project(project).Email(email).Count())

	return nil
}

func revokeInvitation(dbm *database.DatabaseManager, token string) error {
	inv := dbm.InvitationQuery().Token(token).One()

	if inv == nil {
		return fmt.Errorf("no invitation with token %s", token)
	}

	if !inv.IsPending() {
		return fmt.Errorf("invitation for %s is %s", inv.Email, inv.Status)
	}

	if _, err := dbm.InvitationQuery().Token(token).Pending().Update(map[string]any{"status": model.StatusRevoked}); err != nil {
		return err
	}

	fmt.Printf("revoked invitation of %s to %s\n", inv.Email, inv.ProjectID)

	return nil
}

func listDBMembers(dbm *database.DatabaseManager, project, user string, limit int) error {
	for _, m := range dbm.MembershipQuery().Project(project).User(user).Limit(limit).Get() {
		fmt.Printf("%s\t%s\t%s\n", m.ProjectID, m.UserID, m.Role)
	}

	return nil
}

func roleNames() string {
	roles := model.Roles()
	names := make([]string, len(roles))

	for i, r := range roles {
		names[i] = r.String()
	}

	return strings.Join(names, ", ")
}
