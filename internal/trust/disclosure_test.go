package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactDisclosure_RequiresReciprocity(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	model := env.veteran(t, "model")
	post := env.post(t, author)
	disclosure := env.core.Disclosure

	ok, err := disclosure.CanViewContact(env.ctx, post.ID, model.ID)
	require.NoError(t, err)
	assert.False(t, ok, "no thread yet")

	th := env.thread(t, post, model)
	for i := 0; i < 3; i++ {
		_, err = env.core.Messages.Send(env.ctx, th.ID, model.ID, "please reply")
		require.NoError(t, err)
	}
	ok, err = disclosure.CanViewContact(env.ctx, post.ID, model.ID)
	require.NoError(t, err)
	assert.False(t, ok, "one-sided outreach never discloses")

	_, err = env.core.Messages.Send(env.ctx, th.ID, author.ID, "sure")
	require.NoError(t, err)
	ok, err = disclosure.CanViewContact(env.ctx, post.ID, model.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	contact, ok, err := disclosure.ContactFor(env.ctx, post.ID, model.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "line: studio-p", contact)
}

func TestContactDisclosure_AuthorOnlyMessagesDoNotDisclose(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	model := env.veteran(t, "model")
	post := env.post(t, author)
	th := env.thread(t, post, model)

	_, err := env.core.Messages.Send(env.ctx, th.ID, author.ID, "hello from author")
	require.NoError(t, err)

	ok, err := env.core.Disclosure.CanViewContact(env.ctx, post.ID, model.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContactDisclosure_AuthorAlwaysSeesOwnContact(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	post := env.post(t, author)

	ok, err := env.core.Disclosure.CanViewContact(env.ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestContactDisclosure_BlockAndVisibility(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	model := env.veteran(t, "model")
	post := env.post(t, author)
	th := env.thread(t, post, model)
	_, err := env.core.Messages.Send(env.ctx, th.ID, model.ID, "hi")
	require.NoError(t, err)
	_, err = env.core.Messages.Send(env.ctx, th.ID, author.ID, "hello")
	require.NoError(t, err)

	require.NoError(t, env.core.Blocks.Block(env.ctx, author.ID, model.ID))
	ok, err := env.core.Disclosure.CanViewContact(env.ctx, post.ID, model.ID)
	require.NoError(t, err)
	assert.False(t, ok, "a block revokes disclosure")
	require.NoError(t, env.core.Blocks.Unblock(env.ctx, author.ID, model.ID))

	_, err = env.store.TogglePostVisibility(env.ctx, post.ID)
	require.NoError(t, err)
	ok, err = env.core.Disclosure.CanViewContact(env.ctx, post.ID, model.ID)
	require.NoError(t, err)
	assert.False(t, ok, "hidden posts disclose nothing")

	contact, ok, err := env.core.Disclosure.ContactFor(env.ctx, "missing", model.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, contact)
}
