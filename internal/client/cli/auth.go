package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/folio/internal/common"
)

// getSimpleText and getPassword point to the interactive helpers and are
// swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter display name", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.auth.SignUp(ctx, email, string(password), name); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Account created. An administrator has to grant access before you can sign in.")
	return nil
}

// Login signs in. Only admins stay signed in; the service signs anyone else
// out again and the gate message is shown.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	snap, err := a.auth.SignIn(ctx, email, string(password))
	if err != nil {
		return err
	}

	name := snap.Identity.DisplayName
	if name == "" {
		name = snap.Identity.Email
	}
	fmt.Fprintf(a.out, "Welcome, %s.\n", name)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
