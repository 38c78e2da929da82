package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/outline"
)

var (
	addAfter  string
	addLevel  int
	addHeader bool
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Short:   "Show the outline",
	Aliases: []string{"list"},
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var addCmd = &cobra.Command{
	Use:   "add <text>...",
	Short: "Add an item, at the end unless --after is given",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <position> <text>...",
	Short: "Replace an item's text",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runEdit,
}

var doneCmd = &cobra.Command{
	Use:   "done <position>",
	Short: "Toggle a task's completion; completed tasks sink below open ones",
	Args:  cobra.ExactArgs(1),
	RunE:  runDone,
}

var indentCmd = &cobra.Command{
	Use:   "indent <position>",
	Short: "Indent an item one level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndent(cmd, args[0], outline.In)
	},
}

var outdentCmd = &cobra.Command{
	Use:   "outdent <position>",
	Short: "Outdent an item one level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndent(cmd, args[0], outline.Out)
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <position>",
	Short:   "Delete an item",
	Aliases: []string{"delete"},
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

var mvCmd = &cobra.Command{
	Use:   "mv <position> <to>",
	Short: "Move an item to another position",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the outline and redraw it when another session changes it",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	addCmd.Flags().StringVar(&addAfter, "after", "", "position to insert after")
	addCmd.Flags().IntVar(&addLevel, "level", 0, "indent level (0-4)")
	addCmd.Flags().BoolVar(&addHeader, "header", false, "add a header instead of a task")

	rootCmd.AddCommand(lsCmd, addCmd, editCmd, doneCmd, indentCmd, outdentCmd, rmCmd, mvCmd, watchCmd)
}

// mutate loads the outline, applies op and waits for everything it sent.
func mutate(cmd *cobra.Command, op func(ctx context.Context, store *outline.Store) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := a.openOutline(ctx, false)
	if err != nil {
		return err
	}

	opErr := op(ctx, store)
	if err := a.finish(ctx, store); err != nil && opErr == nil {
		opErr = err
	}
	if opErr != nil {
		return opErr
	}

	fmt.Print(renderOutline(store.Items()))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	store, err := a.openOutline(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Print(renderOutline(store.Items()))
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	itemType := models.ItemTask
	if addHeader {
		itemType = models.ItemHeader
	}
	text := strings.Join(args, " ")

	return mutate(cmd, func(ctx context.Context, store *outline.Store) error {
		afterId := ""
		if addAfter != "" {
			after, err := itemAt(store, addAfter)
			if err != nil {
				return err
			}
			afterId = after.Id
		} else if items := store.Items(); len(items) > 0 {
			afterId = items[len(items)-1].Id
		}

		p := store.AddItem(afterId, addLevel, itemType)
		// Sent along with the confirmation
		store.UpdateItem(store.Focus(), models.ItemPatch{Text: models.Ptr(text)})
		return waitPending(ctx, p)
	})
}

func runEdit(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, store *outline.Store) error {
		item, err := itemAt(store, args[0])
		if err != nil {
			return err
		}
		store.UpdateItem(item.Id, models.ItemPatch{Text: models.Ptr(strings.Join(args[1:], " "))})
		return nil
	})
}

func runDone(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, store *outline.Store) error {
		item, err := itemAt(store, args[0])
		if err != nil {
			return err
		}
		if item.Type == models.ItemHeader {
			return errors.New("headers cannot be completed")
		}
		return waitPending(ctx, store.ToggleComplete(item.Id))
	})
}

func runIndent(cmd *cobra.Command, position string, dir outline.Direction) error {
	return mutate(cmd, func(ctx context.Context, store *outline.Store) error {
		item, err := itemAt(store, position)
		if err != nil {
			return err
		}
		return waitPending(ctx, store.IndentItem(item.Id, dir))
	})
}

func runRemove(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, store *outline.Store) error {
		item, err := itemAt(store, args[0])
		if err != nil {
			return err
		}
		if len(store.Items()) == 1 {
			return errors.New("the last item cannot be deleted")
		}
		return waitPending(ctx, store.DeleteItem(item.Id))
	})
}

func runMove(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, store *outline.Store) error {
		item, err := itemAt(store, args[0])
		if err != nil {
			return err
		}
		to, err := parsePosition(args[1], len(store.Items()))
		if err != nil {
			return err
		}
		return waitPending(ctx, store.Move(item.Id, to))
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	ctx := cmd.Context()

	store := a.newStore(func(items []models.Item) {
		fmt.Print(renderOutline(items))
		fmt.Println()
	})
	defer store.Close()

	if err := store.Load(ctx); err != nil {
		return err
	}

	err = store.Watch(ctx, a.remote)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
