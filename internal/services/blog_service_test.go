package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/blogdesk/internal/models"
)

func TestListBlogsPaginatesFromStorageThenCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	for i := 1; i <= 7; i++ {
		env.seedBlog(t, author, fmt.Sprintf("post %d", i), models.StatePublished)
	}
	reader := actorOf(author)

	first, err := env.blogs.List(ctx, reader, ListBlogsOptions{Page: 1})
	require.NoError(t, err)
	require.Equal(t, SourceStorage, first.Source)
	require.Equal(t, []string{"post 1", "post 2", "post 3", "post 4", "post 5"}, blogTitles(first.Blogs))
	require.Equal(t, 2, first.TotalPages)
	require.EqualValues(t, 7, first.TotalBlogs)

	second, err := env.blogs.List(ctx, reader, ListBlogsOptions{Page: 2})
	require.NoError(t, err)
	require.Equal(t, SourceCache, second.Source)
	require.Equal(t, []string{"post 6", "post 7"}, blogTitles(second.Blogs))
	require.Equal(t, 2, second.TotalPages)
}

func TestListBlogsHidesUnpublishedFromNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	admin := env.seedUser(t, "root", models.RoleAdmin)
	env.seedBlog(t, author, "public", models.StatePublished)
	env.seedBlog(t, author, "hidden", 0)

	for _, warm := range []bool{false, true} {
		if warm {
			require.NoError(t, env.cache.RefreshBlogs(ctx))
		} else {
			require.NoError(t, env.cache.Evict(ctx, CollectionBlogs))
		}

		page, err := env.blogs.List(ctx, actorOf(author), ListBlogsOptions{Page: 1})
		require.NoError(t, err)
		require.Equal(t, []string{"public"}, blogTitles(page.Blogs))
		require.EqualValues(t, 1, page.Matched)
		require.EqualValues(t, 2, page.TotalBlogs)

		if !warm {
			require.NoError(t, env.cache.Evict(ctx, CollectionBlogs))
		}
		page, err = env.blogs.List(ctx, actorOf(admin), ListBlogsOptions{Page: 1})
		require.NoError(t, err)
		require.Equal(t, []string{"public", "hidden"}, blogTitles(page.Blogs))
	}
}

func TestListBlogsPageValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	reader := actorOf(author)

	_, err := env.blogs.List(ctx, reader, ListBlogsOptions{})
	require.ErrorIs(t, err, ErrPageRequired)

	_, err = env.blogs.List(ctx, reader, ListBlogsOptions{Page: -1})
	require.ErrorIs(t, err, ErrInvalidPage)

	empty, err := env.blogs.List(ctx, reader, ListBlogsOptions{Page: 1})
	require.NoError(t, err)
	require.Empty(t, empty.Blogs)
	require.Zero(t, empty.TotalPages)

	env.seedBlog(t, author, "only", models.StatePublished)
	require.NoError(t, env.cache.RefreshBlogs(ctx))
	_, err = env.blogs.List(ctx, reader, ListBlogsOptions{Page: 2})
	require.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestListBlogsTitleFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	env.seedBlog(t, author, "Go Tips", models.StatePublished)
	env.seedBlog(t, author, "100% cotton", models.StatePublished)
	env.seedBlog(t, author, "gopher facts", models.StatePublished)
	reader := actorOf(author)

	cold, err := env.blogs.List(ctx, reader, ListBlogsOptions{Page: 1, Title: "go"})
	require.NoError(t, err)
	require.Equal(t, SourceStorage, cold.Source)
	require.Equal(t, []string{"Go Tips", "gopher facts"}, blogTitles(cold.Blogs))

	warm, err := env.blogs.List(ctx, reader, ListBlogsOptions{Page: 1, Title: "go"})
	require.NoError(t, err)
	require.Equal(t, SourceCache, warm.Source)
	require.Equal(t, blogTitles(cold.Blogs), blogTitles(warm.Blogs))

	require.NoError(t, env.cache.Evict(ctx, CollectionBlogs))
	literal, err := env.blogs.List(ctx, reader, ListBlogsOptions{Page: 1, Title: "0%"})
	require.NoError(t, err)
	require.Equal(t, []string{"100% cotton"}, blogTitles(literal.Blogs))
}

func TestListBlogsPageSizeIsClamped(t *testing.T) {
	env := newTestEnv(t)
	svc, err := NewBlogService(env.db, env.cache, WithBlogPageSize(2, 3))
	require.NoError(t, err)
	author := env.seedUser(t, "alice", models.RoleUser)
	for i := 0; i < 4; i++ {
		env.seedBlog(t, author, fmt.Sprintf("p%d", i), models.StatePublished)
	}

	page, err := svc.List(context.Background(), actorOf(author), ListBlogsOptions{Page: 1, PageSize: 50})
	require.NoError(t, err)
	require.Len(t, page.Blogs, 3)
	require.Equal(t, 3, page.PageSize)
}

func TestCreateBlogIsVisibleImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	reader := actorOf(author)

	_, err := env.blogs.List(ctx, reader, ListBlogsOptions{Page: 1})
	require.NoError(t, err)

	created, err := env.blogs.Create(ctx, reader, CreateBlogInput{Title: " Hello ", Content: "World"})
	require.NoError(t, err)
	require.Equal(t, "Hello", created.Title)
	require.Equal(t, models.StatePublished, created.State)
	require.Equal(t, author.ID, created.AuthorID)

	page, err := env.blogs.List(ctx, reader, ListBlogsOptions{Page: 1})
	require.NoError(t, err)
	require.Equal(t, SourceCache, page.Source)
	require.Equal(t, []string{"Hello"}, blogTitles(page.Blogs))
}

func TestCreateBlogValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	admin := env.seedUser(t, "root", models.RoleAdmin)
	draft := 0

	_, err := env.blogs.Create(ctx, actorOf(author), CreateBlogInput{Title: "t"})
	require.ErrorIs(t, err, ErrBlogFieldsRequired)

	_, err = env.blogs.Create(ctx, actorOf(author), CreateBlogInput{Title: "t", Content: "c", State: &draft})
	require.ErrorIs(t, err, ErrBlogStateForbidden)

	created, err := env.blogs.Create(ctx, actorOf(admin), CreateBlogInput{Title: "t", Content: "c", State: &draft})
	require.NoError(t, err)
	require.Equal(t, 0, created.State)
	require.Equal(t, 0, env.reloadBlog(t, created.ID).State)
}

func TestDraftCreatedByAdminStaysHidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reader := env.seedUser(t, "alice", models.RoleUser)
	admin := env.seedUser(t, "root", models.RoleAdmin)
	draft := 0

	created, err := env.blogs.Create(ctx, actorOf(admin), CreateBlogInput{Title: "draft", Content: "c", State: &draft})
	require.NoError(t, err)

	for _, warm := range []bool{true, false} {
		if !warm {
			require.NoError(t, env.cache.Evict(ctx, CollectionBlogs))
		}
		_, err = env.blogs.Get(ctx, actorOf(reader), created.ID)
		require.ErrorIs(t, err, ErrBlogNotFound)

		if !warm {
			require.NoError(t, env.cache.Evict(ctx, CollectionBlogs))
		}
		page, err := env.blogs.List(ctx, actorOf(reader), ListBlogsOptions{Page: 1})
		require.NoError(t, err)
		require.Empty(t, page.Blogs)

		got, err := env.blogs.Get(ctx, actorOf(admin), created.ID)
		require.NoError(t, err)
		require.Equal(t, 0, got.State)
	}
}

func TestUpdateBlogPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.seedUser(t, "alice", models.RoleUser)
	other := env.seedUser(t, "bob", models.RoleUser)
	admin := env.seedUser(t, "root", models.RoleAdmin)
	blog := env.seedBlog(t, owner, "original", models.StatePublished)
	require.NoError(t, env.cache.RefreshBlogs(ctx))

	title := "hijacked"
	_, err := env.blogs.Update(ctx, actorOf(other), blog.ID, UpdateBlogInput{Title: &title})
	require.ErrorIs(t, err, ErrBlogUpdateForbidden)
	require.Equal(t, "You cant update this blog with your access !", err.Error())

	title = "edited"
	updated, err := env.blogs.Update(ctx, actorOf(owner), blog.ID, UpdateBlogInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "edited", updated.Title)

	cached, err := env.blogs.Get(ctx, actorOf(other), blog.ID)
	require.NoError(t, err)
	require.Equal(t, "edited", cached.Title)

	hidden := 0
	_, err = env.blogs.Update(ctx, actorOf(owner), blog.ID, UpdateBlogInput{State: &hidden})
	require.ErrorIs(t, err, ErrBlogStateForbidden)

	_, err = env.blogs.Update(ctx, actorOf(admin), blog.ID, UpdateBlogInput{State: &hidden})
	require.NoError(t, err)
	_, err = env.blogs.Get(ctx, actorOf(other), blog.ID)
	require.ErrorIs(t, err, ErrBlogNotFound)

	_, err = env.blogs.Update(ctx, actorOf(admin), "missing", UpdateBlogInput{Title: &title})
	require.ErrorIs(t, err, ErrBlogNotFound)
}

func TestGetBlogFallsBackToStorage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	env.seedBlog(t, author, "cached", models.StatePublished)
	require.NoError(t, env.cache.RefreshBlogs(ctx))

	direct := env.seedBlog(t, author, "written elsewhere", models.StatePublished)

	found, err := env.blogs.Get(ctx, actorOf(author), direct.ID)
	require.NoError(t, err)
	require.Equal(t, "written elsewhere", found.Title)

	snapshot, ok := env.cache.Blogs(ctx)
	require.True(t, ok)
	require.Len(t, snapshot, 2, "fallback hit reloads the snapshot")

	_, err = env.blogs.Get(ctx, actorOf(author), "does-not-exist")
	require.ErrorIs(t, err, ErrBlogNotFound)
}

func TestLikeAndDislikeToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	voter := env.seedUser(t, "bob", models.RoleUser)
	blog := env.seedBlog(t, author, "vote me", models.StatePublished)

	result, err := env.blogs.Like(ctx, actorOf(voter), blog.ID)
	require.NoError(t, err)
	require.Equal(t, "Liked", result.Message)
	require.Equal(t, 1, result.Blog.Like)

	stored := env.reloadBlog(t, blog.ID)
	require.Equal(t, 1, stored.Like)
	require.Equal(t, []string{voter.ID}, []string(stored.LikesInfo))
	require.Equal(t, []string{blog.ID}, []string(env.reloadUser(t, voter.ID).LikedPosts))

	result, err = env.blogs.Dislike(ctx, actorOf(voter), blog.ID)
	require.NoError(t, err)
	require.Equal(t, "Disliked", result.Message)
	stored = env.reloadBlog(t, blog.ID)
	require.Equal(t, 0, stored.Like)
	require.Equal(t, 1, stored.Dislike)
	reloaded := env.reloadUser(t, voter.ID)
	require.Empty(t, reloaded.LikedPosts)
	require.Equal(t, []string{blog.ID}, []string(reloaded.DislikedPosts))

	result, err = env.blogs.Dislike(ctx, actorOf(voter), blog.ID)
	require.NoError(t, err)
	require.Equal(t, "Dislike removed", result.Message)
	stored = env.reloadBlog(t, blog.ID)
	require.Zero(t, stored.Dislike)
	require.Empty(t, stored.DislikesInfo)

	cached, err := env.blogs.Get(ctx, actorOf(voter), blog.ID)
	require.NoError(t, err)
	require.Zero(t, cached.Dislike)
}

func TestVoteOnHiddenBlogIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	author := env.seedUser(t, "alice", models.RoleUser)
	blog := env.seedBlog(t, author, "draft", 0)

	_, err := env.blogs.Like(context.Background(), actorOf(author), blog.ID)
	require.ErrorIs(t, err, ErrBlogNotFound)
}

func TestDeleteBlogDetachesVoters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	voter := env.seedUser(t, "bob", models.RoleUser)
	blog := env.seedBlog(t, author, "doomed", models.StatePublished)
	keep := env.seedBlog(t, author, "kept", models.StatePublished)

	_, err := env.blogs.Like(ctx, actorOf(voter), blog.ID)
	require.NoError(t, err)
	_, err = env.blogs.Like(ctx, actorOf(voter), keep.ID)
	require.NoError(t, err)

	require.ErrorIs(t, env.blogs.Delete(ctx, actorOf(voter), blog.ID), ErrBlogDeleteForbidden)
	require.NoError(t, env.blogs.Delete(ctx, actorOf(author), blog.ID))

	require.Equal(t, []string{keep.ID}, []string(env.reloadUser(t, voter.ID).LikedPosts))
	_, err = env.blogs.Get(ctx, actorOf(author), blog.ID)
	require.ErrorIs(t, err, ErrBlogNotFound)

	users, ok := env.cache.Users(ctx)
	require.True(t, ok)
	for _, user := range users {
		require.NotContains(t, []string(user.LikedPosts), blog.ID)
	}
}

func TestDeleteAllBlogs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	admin := env.seedUser(t, "root", models.RoleAdmin)
	blog := env.seedBlog(t, author, "one", models.StatePublished)
	env.seedBlog(t, author, "two", models.StatePublished)
	_, err := env.blogs.Like(ctx, actorOf(author), blog.ID)
	require.NoError(t, err)

	_, err = env.blogs.DeleteAll(ctx, actorOf(author))
	require.ErrorIs(t, err, ErrBlogDeleteForbidden)

	removed, err := env.blogs.DeleteAll(ctx, actorOf(admin))
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)
	require.Empty(t, env.reloadUser(t, author.ID).LikedPosts)

	page, err := env.blogs.List(ctx, actorOf(admin), ListBlogsOptions{Page: 1})
	require.NoError(t, err)
	require.Empty(t, page.Blogs)
	require.Zero(t, page.TotalBlogs)
}
