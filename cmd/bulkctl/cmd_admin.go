package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/rbac"
	"github.com/njprem/agri_admin_backend/internal/settings"
)

// promptConfirm reads y/N from stdin unless --yes was given.
func promptConfirm(cmd *cobra.Command) rbac.Confirmer {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return rbac.AlwaysConfirm
	}
	return rbac.ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
		fmt.Printf("%s [y/N] ", prompt)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	})
}

func loadedManager(cmd *cobra.Command) (*rbac.Manager, error) {
	m := rbac.NewManager(api, promptConfirm(cmd))
	if err := m.Reload(cmd.Context()); err != nil {
		return nil, err
	}
	return m, nil
}

func idArg(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func roleInputFromFlags(cmd *cobra.Command) domain.RoleInput {
	name, _ := cmd.Flags().GetString("name")
	desc, _ := cmd.Flags().GetString("description")
	inactive, _ := cmd.Flags().GetBool("inactive")
	modules, _ := cmd.Flags().GetStringSlice("modules")
	perms, _ := cmd.Flags().GetStringSlice("permissions")

	in := domain.RoleInput{RoleName: name, Description: desc, IsActive: !inactive}
	for _, m := range modules {
		in.Modules = append(in.Modules, domain.Module(strings.ToUpper(strings.TrimSpace(m))))
	}
	for _, p := range perms {
		in.Permissions = append(in.Permissions, domain.Permission(strings.ToUpper(strings.TrimSpace(p))))
	}
	return in
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Manage roles and assignments",
}

var rolesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadedManager(cmd)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tACTIVE\tMODULES\tPERMISSIONS")
		for _, r := range m.Roles() {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", r.ID, r.Name, r.IsActive,
				strings.Join(r.AllowedModules, ","), strings.Join(r.Permissions, ","))
		}
		return w.Flush()
	},
}

var rolesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a role",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := rbac.NewManager(api, nil)
		role, err := m.CreateRole(cmd.Context(), roleInputFromFlags(cmd))
		if err != nil {
			return err
		}
		return printJSON(role)
	},
}

var rolesUpdateCmd = &cobra.Command{
	Use:   "update ROLE_ID",
	Short: "Replace a role's name, modules and permissions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := idArg(args[0])
		if err != nil {
			return err
		}
		role, err := rbac.NewManager(api, nil).UpdateRole(cmd.Context(), id, roleInputFromFlags(cmd))
		if err != nil {
			return err
		}
		return printJSON(role)
	},
}

func roleStateCmd(use, short string, run func(*rbac.Manager, context.Context, uuid.UUID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ROLE_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args[0])
			if err != nil {
				return err
			}
			if err := run(rbac.NewManager(api, nil), cmd.Context(), id); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

var rolesDeleteCmd = roleStateCmd("delete", "Delete an unassigned role", func(m *rbac.Manager, ctx context.Context, id uuid.UUID) error {
	return m.DeleteRole(ctx, id)
})

var rolesActivateCmd = roleStateCmd("activate", "Activate a role", func(m *rbac.Manager, ctx context.Context, id uuid.UUID) error {
	_, err := m.ActivateRole(ctx, id)
	return err
})

var rolesDeactivateCmd = roleStateCmd("deactivate", "Deactivate a role; holders lose its permissions", func(m *rbac.Manager, ctx context.Context, id uuid.UUID) error {
	_, err := m.DeactivateRole(ctx, id)
	return err
})

var rolesAssignCmd = &cobra.Command{
	Use:   "assign ROLE_ID USER_ID...",
	Short: "Give users a role, replacing their current one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleID, err := idArg(args[0])
		if err != nil {
			return err
		}
		users := make([]uuid.UUID, 0, len(args)-1)
		for _, raw := range args[1:] {
			id, err := idArg(raw)
			if err != nil {
				return err
			}
			users = append(users, id)
		}
		m, err := loadedManager(cmd)
		if err != nil {
			return err
		}
		if len(users) == 1 {
			return m.AssignRole(cmd.Context(), users[0], roleID)
		}
		return m.BulkAssign(cmd.Context(), users, roleID)
	},
}

var rolesPermissionsCmd = &cobra.Command{
	Use:   "permissions USER_ID",
	Short: "Show the effective permissions of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := idArg(args[0])
		if err != nil {
			return err
		}
		perms, err := rbac.NewManager(api, nil).GetUserPermissions(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(perms)
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change system settings",
}

func loadedStore(ctx context.Context) (*settings.Store, error) {
	s, err := settings.New(api)
	if err != nil {
		return nil, err
	}
	s.Load(ctx, false)
	return s, nil
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print all settings categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadedStore(cmd.Context())
		if err != nil {
			return err
		}
		failed := map[string]string{}
		for c, err := range s.Failures() {
			failed[string(c)] = err.Error()
		}
		education := map[string][]string{}
		for _, ut := range []string{domain.UserTypeFarmer, domain.UserTypeEmployee, domain.UserTypeFPO} {
			education[ut] = s.EducationTypes(ut)
		}
		return printJSON(map[string]any{
			"age":            s.AgeSettings(),
			"educationTypes": education,
			"cropNames":      s.CropNames(),
			"cropTypes":      s.CropTypes(),
			"codeFormats":    s.CodeFormats(),
			"defaultsServed": failed,
		})
	},
}

var settingsValidateAgeCmd = &cobra.Command{
	Use:   "validate-age AGE USER_TYPE",
	Short: "Check an age against the configured bounds",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("age must be a number")
		}
		s, err := loadedStore(cmd.Context())
		if err != nil {
			return err
		}
		res := s.ValidateAge(age, args[1])
		if !res.IsValid {
			return fmt.Errorf("%s", res.Message)
		}
		fmt.Println("valid")
		return nil
	},
}

var settingsNextCodeCmd = &cobra.Command{
	Use:   "next-code FARMER|EMPLOYEE",
	Short: "Preview the next display id, or consume it with --generate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codeType := domain.CodeType(strings.ToUpper(args[0]))
		if !codeType.Valid() {
			return fmt.Errorf("code type must be FARMER or EMPLOYEE")
		}
		if generate, _ := cmd.Flags().GetBool("generate"); generate {
			code, err := api.GenerateNextCode(cmd.Context(), codeType)
			if err != nil {
				return err
			}
			fmt.Println(code)
			return nil
		}
		s, err := loadedStore(cmd.Context())
		if err != nil {
			return err
		}
		code, ok := s.PreviewNextCode(codeType)
		if !ok {
			return fmt.Errorf("no active %s code format (default prefix %s)", codeType, s.DisplayPrefix(codeType))
		}
		fmt.Println(code)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set CATEGORY FILE.json",
	Short: "Replace a settings category (age, education-types, crop-names, crop-types)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		category := domain.SettingCategory(strings.ToLower(args[0]))
		var payload any
		switch category {
		case domain.SettingAge:
			payload, err = decodeAs[domain.AgeSettings](raw)
		case domain.SettingEducationTypes:
			payload, err = decodeAs[domain.EducationTypes](raw)
		case domain.SettingCropNames:
			payload, err = decodeAs[domain.CropNames](raw)
		case domain.SettingCropTypes:
			payload, err = decodeAs[domain.CropTypes](raw)
		default:
			return fmt.Errorf("unknown category %q", args[0])
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[1], err)
		}
		s, err := loadedStore(cmd.Context())
		if err != nil {
			return err
		}
		return s.Update(cmd.Context(), category, payload)
	},
}

func decodeAs[T any](raw []byte) (any, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func init() {
	for _, c := range []*cobra.Command{rolesCreateCmd, rolesUpdateCmd} {
		c.Flags().String("name", "", "role name")
		c.Flags().String("description", "", "role description")
		c.Flags().Bool("inactive", false, "create the role switched off")
		c.Flags().StringSlice("modules", nil, "EMPLOYEE,FARMER,FPO,CONFIGURATION,ANALYTICS,USER_MANAGEMENT")
		c.Flags().StringSlice("permissions", nil, "ADD,VIEW,EDIT,DELETE")
	}
	rolesAssignCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	rolesCmd.AddCommand(rolesListCmd, rolesCreateCmd, rolesUpdateCmd, rolesDeleteCmd,
		rolesActivateCmd, rolesDeactivateCmd, rolesAssignCmd, rolesPermissionsCmd)

	settingsNextCodeCmd.Flags().Bool("generate", false, "consume the next number on the server")
	settingsCmd.AddCommand(settingsShowCmd, settingsValidateAgeCmd, settingsNextCodeCmd, settingsSetCmd)
}
