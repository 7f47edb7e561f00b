package redis

const (
	// upsertAdminUserScript writes a user hash and indexes the username,
	// keeping created_at and last_login from any existing record
	upsertAdminUserScript = `
local user_key = KEYS[1]    -- folio:admin_user:{username}
local users_set = KEYS[2]   -- folio:admin_users

local id = ARGV[1]
local username = ARGV[2]
local password_hash = ARGV[3]
local created_at = ARGV[4]
local updated_at = ARGV[5]

local existing_created = redis.call('HGET', user_key, 'created_at')
if existing_created then
  created_at = existing_created
end

redis.call('HSET', user_key,
  'id', id,
  'username', username,
  'password_hash', password_hash,
  'created_at', created_at,
  'updated_at', updated_at
)

redis.call('SADD', users_set, username)

return 'OK'
`

	// updateLastLoginScript sets last_login only when the user exists.
	// Returns 1 on update, 0 when the user is missing.
	updateLastLoginScript = `
local user_key = KEYS[1]    -- folio:admin_user:{username}

if redis.call('EXISTS', user_key) == 0 then
  return 0
end

redis.call('HSET', user_key,
  'last_login', ARGV[1],
  'updated_at', ARGV[2]
)

return 1
`

	// deleteAdminUserScript removes a user hash and its index entry.
	// Returns the number of hashes deleted.
	deleteAdminUserScript = `
local user_key = KEYS[1]    -- folio:admin_user:{username}
local users_set = KEYS[2]   -- folio:admin_users

local deleted = redis.call('DEL', user_key)
redis.call('SREM', users_set, ARGV[1])

return deleted
`
)
