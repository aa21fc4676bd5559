package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/blogdesk/internal/models"
)

func TestFormatFromFilename(t *testing.T) {
	format, err := FormatFromFilename("blogs.CSV")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, format)

	format, err = FormatFromFilename("export.xlsx")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, format)

	_, err = FormatFromFilename("notes.txt")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExportRespectsVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	env.seedBlog(t, author, "public", models.StatePublished)
	env.seedBlog(t, author, "draft", 0)

	file, err := env.blogs.Export(ctx, actorOf(author), FormatCSV)
	require.NoError(t, err)
	require.Equal(t, 1, file.Rows)
	require.True(t, strings.HasSuffix(file.Filename, ".csv"))

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "id,title,content,author"))
	require.Contains(t, lines[1], "public")

	_, err = env.blogs.Export(ctx, actorOf(author), "pdf")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExportImportRoundTrip(t *testing.T) {
	for _, format := range []string{FormatCSV, FormatXLSX} {
		t.Run(format, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			author := env.seedUser(t, "alice", models.RoleUser)
			voter := env.seedUser(t, "bob", models.RoleUser)
			admin := env.seedUser(t, "root", models.RoleAdmin)
			blog := env.seedBlog(t, author, "round trip", models.StatePublished)
			_, err := env.blogs.Like(ctx, actorOf(voter), blog.ID)
			require.NoError(t, err)

			file, err := env.blogs.Export(ctx, actorOf(admin), format)
			require.NoError(t, err)

			_, err = env.blogs.DeleteAll(ctx, actorOf(admin))
			require.NoError(t, err)

			summary, err := env.blogs.Import(ctx, actorOf(admin), file.Filename, bytes.NewReader(file.Data))
			require.NoError(t, err)
			require.Equal(t, 1, summary.Imported)
			require.Zero(t, summary.Skipped)

			var imported []models.Blog
			require.NoError(t, env.db.Find(&imported).Error)
			require.Len(t, imported, 1)
			require.NotEqual(t, blog.ID, imported[0].ID)
			require.Equal(t, "round trip", imported[0].Title)
			require.Equal(t, 1, imported[0].Like)
			require.Equal(t, []string{voter.ID}, []string(imported[0].LikesInfo))
			require.Equal(t, []string{imported[0].ID}, []string(env.reloadUser(t, voter.ID).LikedPosts))

			cached, ok := env.cache.Blogs(ctx)
			require.True(t, ok)
			require.Len(t, cached, 1)
		})
	}
}

func TestImportSkipsInvalidRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	admin := env.seedUser(t, "root", models.RoleAdmin)

	csvData := strings.Join([]string{
		"Title,Content,AuthorId,State",
		"good,body," + author.ID + ",1",
		"orphan,body,ghost,1",
		",missing title," + author.ID + ",1",
		"bad state,body," + author.ID + ",draft",
	}, "\n")

	_, err := env.blogs.Import(ctx, actorOf(author), "blogs.csv", strings.NewReader(csvData))
	require.ErrorIs(t, err, ErrBlogUpdateForbidden)

	summary, err := env.blogs.Import(ctx, actorOf(admin), "blogs.csv", strings.NewReader(csvData))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Imported)
	require.Equal(t, 3, summary.Skipped)
	require.Len(t, summary.Problems, 3)
	require.Contains(t, summary.Problems[0], "row 3")

	_, err = env.blogs.Import(ctx, actorOf(admin), "blogs.csv", strings.NewReader("name,body\nx,y\n"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImportKeepsDraftsHidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	admin := env.seedUser(t, "root", models.RoleAdmin)

	csvData := strings.Join([]string{
		"title,content,author,state",
		"public,body," + author.ID + ",1",
		"draft,body," + author.ID + ",0",
	}, "\n")
	summary, err := env.blogs.Import(ctx, actorOf(admin), "blogs.csv", strings.NewReader(csvData))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Imported)

	var stored models.Blog
	require.NoError(t, env.db.Take(&stored, "title = ?", "draft").Error)
	require.Equal(t, 0, stored.State)

	for _, warm := range []bool{true, false} {
		if !warm {
			require.NoError(t, env.cache.Evict(ctx, CollectionBlogs))
		}
		page, err := env.blogs.List(ctx, actorOf(author), ListBlogsOptions{Page: 1})
		require.NoError(t, err)
		require.Equal(t, []string{"public"}, blogTitles(page.Blogs))

		if !warm {
			require.NoError(t, env.cache.Evict(ctx, CollectionBlogs))
		}
		file, err := env.blogs.Export(ctx, actorOf(author), FormatCSV)
		require.NoError(t, err)
		require.Equal(t, 1, file.Rows)
		require.NotContains(t, string(file.Data), "draft")

		file, err = env.blogs.Export(ctx, actorOf(admin), FormatXLSX)
		require.NoError(t, err)
		require.Equal(t, 2, file.Rows)
	}
}
