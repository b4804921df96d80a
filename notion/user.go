package notion

type UserType string

const (
	UserPerson UserType = "person"
	UserBot    UserType = "bot"
)

// User is a user reference. Page authors often carry only Object and ID.
type User struct {
	Object    string
	ID        string
	Type      UserType
	Name      string
	AvatarURL *string
	Email     string
}

func decodeUser(v any, path string) (User, error) {
	m, err := asObject(v, path)
	if err != nil {
		return User{}, err
	}
	object, err := optionalString(m, "object", path)
	if err != nil {
		return User{}, err
	}
	if object != "" && object != "user" {
		return User{}, mismatch(joinPath(path, "object"), "expected \"user\", got %q", object)
	}
	id, err := requireString(m, "id", path)
	if err != nil {
		return User{}, err
	}
	typ, err := optionalString(m, "type", path)
	if err != nil {
		return User{}, err
	}
	switch UserType(typ) {
	case "", UserPerson, UserBot:
	default:
		return User{}, mismatch(joinPath(path, "type"), "unknown user type %q", typ)
	}
	name, err := optionalString(m, "name", path)
	if err != nil {
		return User{}, err
	}
	avatar, err := nullableString(m, "avatar_url", path)
	if err != nil {
		return User{}, err
	}
	out := User{
		Object:    "user",
		ID:        id,
		Type:      UserType(typ),
		Name:      name,
		AvatarURL: avatar,
	}
	person, err := optionalObject(m, "person", path)
	if err != nil {
		return User{}, err
	}
	if person != nil {
		if out.Email, err = optionalString(person, "email", joinPath(path, "person")); err != nil {
			return User{}, err
		}
	}
	return out, nil
}

// decodeNullableUser tolerates null for system actors.
func decodeNullableUser(m map[string]any, key, path string) (*User, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	u, err := decodeUser(v, joinPath(path, key))
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type IconType string

const (
	IconEmoji    IconType = "emoji"
	IconExternal IconType = "external"
	IconFile     IconType = "file"
)

type Icon struct {
	Type  IconType
	Emoji string
	URL   string
}

func decodeIcon(m map[string]any, path string) (*Icon, error) {
	typ, err := requireString(m, "type", path)
	if err != nil {
		return nil, err
	}
	switch IconType(typ) {
	case IconEmoji:
		emoji, err := requireString(m, "emoji", path)
		if err != nil {
			return nil, err
		}
		return &Icon{Type: IconEmoji, Emoji: emoji}, nil
	case IconExternal, IconFile:
		obj, err := requireObject(m, typ, path)
		if err != nil {
			return nil, err
		}
		url, err := requireString(obj, "url", joinPath(path, typ))
		if err != nil {
			return nil, err
		}
		return &Icon{Type: IconType(typ), URL: url}, nil
	default:
		return nil, mismatch(joinPath(path, "type"), "unknown icon type %q", typ)
	}
}
