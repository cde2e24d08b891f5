package content

// Query strings sent to the hosted store. The projection dereferences every
// weak link a view needs — author, categories with their image refs, comments
// with their authors, and saver ids — so a single fetch returns a render-ready
// pin and the client never chases references itself.

// pinProjection is the joined pin shape shared by every pin-returning query.
const pinProjection = `{
  _id,
  _createdAt,
  title,
  about,
  image{ asset->{ _id, url } },
  categories[]->{ _id, name, imageRefs[]{ assetId } },
  postedBy->{ _id, username, firstName, lastName, photo{ asset->{ _id, url } } },
  comments[]->{ _id, comment, _createdAt,
    postedBy->{ _id, username, firstName, lastName, photo{ asset->{ _id, url } } } },
  savedBy[]->{ _id, username, firstName, lastName, photo{ asset->{ _id, url } } }
}`

const userProjection = `{
  _id,
  email,
  username,
  firstName,
  lastName,
  photo{ asset->{ _id, url } },
  savedPins[]{ _ref, _type, _key },
  createdPins[]{ _ref, _type, _key }
}`

const categoryProjection = `{ _id, name, imageRefs[]{ assetId, _key } }`

const (
	queryPinByID      = `*[_type == "pin" && _id == $id]` + pinProjection
	queryAllPins      = `*[_type == "pin"] | order(_createdAt desc)` + pinProjection
	queryPinsByIDs    = `*[_type == "pin" && _id in $ids]` + pinProjection
	queryPinsByAuthor = `*[_type == "pin" && postedBy._ref == $userId]` + pinProjection

	queryUserByID       = `*[_type == "user" && _id == $id]` + userProjection
	queryUserByEmail    = `*[_type == "user" && email == $email]` + userProjection
	queryUserByUsername = `*[_type == "user" && username == $username]` + userProjection

	queryAllCategories   = `*[_type == "category"]` + categoryProjection
	queryCategoryByID    = `*[_type == "category" && _id == $id]` + categoryProjection
	queryCategoryByName  = `*[_type == "category" && name == $name]` + categoryProjection
	queryUsersWithSaved  = `*[_type == "user" && $pinId in savedPins[]._ref]` + userProjection
	queryCategoriesWith  = `*[_type == "category" && $assetId in imageRefs[].assetId]` + categoryProjection
	queryPinsWithCat     = `*[_type == "pin" && references($categoryId)]._id`
	queryCommentsByUser  = `*[_type == "comment" && postedBy._ref == $userId]._id`
	queryPinsWithComment = `*[_type == "pin" && $commentId in comments[]._ref]._id`
	queryDraftIDs        = `*[_id in path("drafts.**")]._id`
)

// listen queries are scoped by document type; includeResult is off — events
// carry ids and the consumer refetches the joined document itself.
const (
	listenByType = `*[_type == $type]`
	listenByID   = `*[_type == $type && _id == $id]`
)
