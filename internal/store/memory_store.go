package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"yamdb/internal/domain"
)

// memoryData is the shared state behind the three memory stores. One mutex
// guards everything so cascades and uniqueness checks are atomic.
type memoryData struct {
	mu sync.RWMutex

	lastID     int64
	users      map[int64]domain.User
	categories map[int64]domain.Category
	genres     map[int64]domain.Genre
	titles     map[int64]memTitle
	reviews    map[int64]domain.Review
	comments   map[int64]domain.Comment
}

type memTitle struct {
	title      domain.Title // Genres, Category and Rating are filled on read
	categoryID int64
	genreIDs   []int64
}

func (d *memoryData) nextID() int64 {
	d.lastID++
	return d.lastID
}

// MemoryUserStore реализует UserStore в памяти (для разработки и тестов).
type MemoryUserStore struct{ d *memoryData }

// MemoryCatalogStore реализует CatalogStore в памяти.
type MemoryCatalogStore struct{ d *memoryData }

// MemoryReviewStore реализует ReviewStore в памяти.
type MemoryReviewStore struct{ d *memoryData }

// NewMemoryStores создает связанный набор хранилищ в памяти.
func NewMemoryStores() Stores {
	d := &memoryData{
		users:      make(map[int64]domain.User),
		categories: make(map[int64]domain.Category),
		genres:     make(map[int64]domain.Genre),
		titles:     make(map[int64]memTitle),
		reviews:    make(map[int64]domain.Review),
		comments:   make(map[int64]domain.Comment),
	}
	return Stores{
		Users:   &MemoryUserStore{d: d},
		Catalog: &MemoryCatalogStore{d: d},
		Reviews: &MemoryReviewStore{d: d},
	}
}

func paginate[T any](items []T, page domain.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return items[:0]
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// --- users ---

// conflicts reports whether another user already holds username or email.
func (d *memoryData) userConflicts(u *domain.User) bool {
	for id, existing := range d.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username || existing.Email == u.Email {
			return true
		}
	}
	return false
}

func (s *MemoryUserStore) Create(_ context.Context, user *domain.User) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	user.ID = 0
	if s.d.userConflicts(user) {
		return ErrUserAlreadyExists
	}
	user.ID = s.d.nextID()
	s.d.users[user.ID] = *user
	return nil
}

func (s *MemoryUserStore) GetOrCreate(_ context.Context, user *domain.User) (*domain.User, bool, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for _, existing := range s.d.users {
		if existing.Username == user.Username && existing.Email == user.Email {
			u := existing
			return &u, false, nil
		}
	}
	created := *user
	created.ID = 0
	if s.d.userConflicts(&created) {
		return nil, false, ErrUserAlreadyExists
	}
	created.ID = s.d.nextID()
	s.d.users[created.ID] = created
	out := created
	return &out, true, nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, userID int64) (*domain.User, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	u, ok := s.d.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	for _, u := range s.d.users {
		if u.Username == username {
			out := u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryUserStore) Update(_ context.Context, user *domain.User) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	existing, ok := s.d.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if s.d.userConflicts(user) {
		return ErrUserAlreadyExists
	}
	updated := *user
	updated.DateJoined = existing.DateJoined
	s.d.users[user.ID] = updated
	return nil
}

// Delete удаляет пользователя вместе с его отзывами и комментариями.
func (s *MemoryUserStore) Delete(_ context.Context, userID int64) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.users[userID]; !ok {
		return ErrUserNotFound
	}
	delete(s.d.users, userID)
	for id, c := range s.d.comments {
		if c.AuthorID == userID {
			delete(s.d.comments, id)
		}
	}
	for id, r := range s.d.reviews {
		if r.AuthorID == userID {
			s.d.deleteReviewLocked(id)
		}
	}
	return nil
}

func (s *MemoryUserStore) List(_ context.Context, params domain.UserListParams) ([]*domain.User, int, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var all []*domain.User
	for _, u := range s.d.users {
		if params.Search != "" && !containsFold(u.Username, params.Search) {
			continue
		}
		out := u
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return append([]*domain.User{}, paginate(all, params.Page)...), len(all), nil
}

// --- catalog ---

func (d *memoryData) slugTaken(slug string, categories bool) bool {
	if categories {
		for _, c := range d.categories {
			if c.Slug == slug {
				return true
			}
		}
		return false
	}
	for _, g := range d.genres {
		if g.Slug == slug {
			return true
		}
	}
	return false
}

func (s *MemoryCatalogStore) CreateCategory(_ context.Context, c *domain.Category) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.d.slugTaken(c.Slug, true) {
		return ErrSlugTaken
	}
	c.ID = s.d.nextID()
	s.d.categories[c.ID] = *c
	return nil
}

func (s *MemoryCatalogStore) GetCategory(_ context.Context, slug string) (*domain.Category, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	for _, c := range s.d.categories {
		if c.Slug == slug {
			out := c
			return &out, nil
		}
	}
	return nil, ErrCategoryNotFound
}

// DeleteCategory удаляет категорию и отвязывает от нее произведения.
func (s *MemoryCatalogStore) DeleteCategory(_ context.Context, slug string) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for id, c := range s.d.categories {
		if c.Slug != slug {
			continue
		}
		delete(s.d.categories, id)
		for tid, t := range s.d.titles {
			if t.categoryID == id {
				t.categoryID = 0
				s.d.titles[tid] = t
			}
		}
		return nil
	}
	return ErrCategoryNotFound
}

func (s *MemoryCatalogStore) ListCategories(_ context.Context, params domain.SlugListParams) ([]*domain.Category, int, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var all []*domain.Category
	for _, c := range s.d.categories {
		if params.Search != "" && !containsFold(c.Name, params.Search) {
			continue
		}
		out := c
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})
	return append([]*domain.Category{}, paginate(all, params.Page)...), len(all), nil
}

func (s *MemoryCatalogStore) CreateGenre(_ context.Context, g *domain.Genre) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.d.slugTaken(g.Slug, false) {
		return ErrSlugTaken
	}
	g.ID = s.d.nextID()
	s.d.genres[g.ID] = *g
	return nil
}

func (s *MemoryCatalogStore) GetGenre(_ context.Context, slug string) (*domain.Genre, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	for _, g := range s.d.genres {
		if g.Slug == slug {
			out := g
			return &out, nil
		}
	}
	return nil, ErrGenreNotFound
}

func (s *MemoryCatalogStore) DeleteGenre(_ context.Context, slug string) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for id, g := range s.d.genres {
		if g.Slug != slug {
			continue
		}
		delete(s.d.genres, id)
		for tid, t := range s.d.titles {
			kept := t.genreIDs[:0:0]
			for _, gid := range t.genreIDs {
				if gid != id {
					kept = append(kept, gid)
				}
			}
			t.genreIDs = kept
			s.d.titles[tid] = t
		}
		return nil
	}
	return ErrGenreNotFound
}

func (s *MemoryCatalogStore) ListGenres(_ context.Context, params domain.SlugListParams) ([]*domain.Genre, int, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var all []*domain.Genre
	for _, g := range s.d.genres {
		if params.Search != "" && !containsFold(g.Name, params.Search) {
			continue
		}
		out := g
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})
	return append([]*domain.Genre{}, paginate(all, params.Page)...), len(all), nil
}

// resolveRefs checks that the title's category and genres exist and returns
// their ids, deduplicated.
func (d *memoryData) resolveRefs(t *domain.Title) (int64, []int64, error) {
	var categoryID int64
	if t.Category != nil {
		if _, ok := d.categories[t.Category.ID]; !ok {
			return 0, nil, ErrDanglingReference
		}
		categoryID = t.Category.ID
	}
	seen := make(map[int64]bool, len(t.Genres))
	genreIDs := make([]int64, 0, len(t.Genres))
	for _, g := range t.Genres {
		if _, ok := d.genres[g.ID]; !ok {
			return 0, nil, ErrDanglingReference
		}
		if !seen[g.ID] {
			seen[g.ID] = true
			genreIDs = append(genreIDs, g.ID)
		}
	}
	return categoryID, genreIDs, nil
}

// materialize builds the read view of a title: current genre and category
// rows plus the rating aggregate.
func (d *memoryData) materialize(mt memTitle) *domain.Title {
	t := mt.title
	if t.Description != nil {
		desc := *t.Description
		t.Description = &desc
	}
	t.Category = nil
	if c, ok := d.categories[mt.categoryID]; ok {
		t.Category = &c
	}
	t.Genres = make([]domain.Genre, 0, len(mt.genreIDs))
	for _, gid := range mt.genreIDs {
		if g, ok := d.genres[gid]; ok {
			t.Genres = append(t.Genres, g)
		}
	}
	sort.Slice(t.Genres, func(i, j int) bool {
		if t.Genres[i].Name != t.Genres[j].Name {
			return t.Genres[i].Name < t.Genres[j].Name
		}
		return t.Genres[i].ID < t.Genres[j].ID
	})
	t.Rating = nil
	var sum, n int
	for _, r := range d.reviews {
		if r.TitleID == t.ID {
			sum += r.Score
			n++
		}
	}
	if n > 0 {
		avg := float64(sum) / float64(n)
		t.Rating = &avg
	}
	return &t
}

func (s *MemoryCatalogStore) CreateTitle(_ context.Context, t *domain.Title) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	categoryID, genreIDs, err := s.d.resolveRefs(t)
	if err != nil {
		return err
	}
	t.ID = s.d.nextID()
	stored := *t
	stored.Genres, stored.Category, stored.Rating = nil, nil, nil
	s.d.titles[t.ID] = memTitle{title: stored, categoryID: categoryID, genreIDs: genreIDs}
	return nil
}

func (s *MemoryCatalogStore) GetTitle(_ context.Context, titleID int64) (*domain.Title, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	mt, ok := s.d.titles[titleID]
	if !ok {
		return nil, ErrTitleNotFound
	}
	return s.d.materialize(mt), nil
}

func (s *MemoryCatalogStore) UpdateTitle(_ context.Context, t *domain.Title) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	existing, ok := s.d.titles[t.ID]
	if !ok {
		return ErrTitleNotFound
	}
	categoryID, genreIDs, err := s.d.resolveRefs(t)
	if err != nil {
		return err
	}
	stored := *t
	stored.Genres, stored.Category, stored.Rating = nil, nil, nil
	stored.CreatedAt = existing.title.CreatedAt
	s.d.titles[t.ID] = memTitle{title: stored, categoryID: categoryID, genreIDs: genreIDs}
	return nil
}

// DeleteTitle удаляет произведение вместе с отзывами и их комментариями.
func (s *MemoryCatalogStore) DeleteTitle(_ context.Context, titleID int64) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.titles[titleID]; !ok {
		return ErrTitleNotFound
	}
	delete(s.d.titles, titleID)
	for id, r := range s.d.reviews {
		if r.TitleID == titleID {
			s.d.deleteReviewLocked(id)
		}
	}
	return nil
}

func (s *MemoryCatalogStore) ListTitles(_ context.Context, params domain.TitleListParams) ([]*domain.Title, int, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var all []*domain.Title
	for _, mt := range s.d.titles {
		t := s.d.materialize(mt)
		if params.Name != "" && !containsFold(t.Name, params.Name) {
			continue
		}
		if params.Year != 0 && t.Year != params.Year {
			continue
		}
		if params.CategorySlug != "" && (t.Category == nil || t.Category.Slug != params.CategorySlug) {
			continue
		}
		if params.GenreSlug != "" && !hasGenre(t, params.GenreSlug) {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return append([]*domain.Title{}, paginate(all, params.Page)...), len(all), nil
}

func hasGenre(t *domain.Title, slug string) bool {
	for _, g := range t.Genres {
		if g.Slug == slug {
			return true
		}
	}
	return false
}

// --- reviews & comments ---

func (d *memoryData) deleteReviewLocked(reviewID int64) {
	delete(d.reviews, reviewID)
	for id, c := range d.comments {
		if c.ReviewID == reviewID {
			delete(d.comments, id)
		}
	}
}

func (d *memoryData) withAuthor(r domain.Review) *domain.Review {
	r.Author = d.users[r.AuthorID].Username
	return &r
}

func (d *memoryData) commentWithAuthor(c domain.Comment) *domain.Comment {
	c.Author = d.users[c.AuthorID].Username
	return &c
}

// CreateReview проверяет уникальность (author, title) под той же блокировкой,
// что и вставка, поэтому конкурентные вызовы не создадут дубликат.
func (s *MemoryReviewStore) CreateReview(_ context.Context, r *domain.Review) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.titles[r.TitleID]; !ok {
		return ErrTitleNotFound
	}
	if _, ok := s.d.users[r.AuthorID]; !ok {
		return ErrUserNotFound
	}
	for _, existing := range s.d.reviews {
		if existing.TitleID == r.TitleID && existing.AuthorID == r.AuthorID {
			return ErrDuplicateReview
		}
	}
	r.ID = s.d.nextID()
	r.Author = s.d.users[r.AuthorID].Username
	s.d.reviews[r.ID] = *r
	return nil
}

func (s *MemoryReviewStore) GetReview(_ context.Context, titleID, reviewID int64) (*domain.Review, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	r, ok := s.d.reviews[reviewID]
	if !ok || r.TitleID != titleID {
		return nil, ErrReviewNotFound
	}
	return s.d.withAuthor(r), nil
}

func (s *MemoryReviewStore) ReviewExists(_ context.Context, titleID, authorID int64) (bool, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	for _, r := range s.d.reviews {
		if r.TitleID == titleID && r.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryReviewStore) UpdateReview(_ context.Context, r *domain.Review) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	existing, ok := s.d.reviews[r.ID]
	if !ok {
		return ErrReviewNotFound
	}
	existing.Text = r.Text
	existing.Score = r.Score
	s.d.reviews[r.ID] = existing
	return nil
}

func (s *MemoryReviewStore) DeleteReview(_ context.Context, reviewID int64) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.reviews[reviewID]; !ok {
		return ErrReviewNotFound
	}
	s.d.deleteReviewLocked(reviewID)
	return nil
}

func (s *MemoryReviewStore) ListReviews(_ context.Context, titleID int64, page domain.Page) ([]*domain.Review, int, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var all []*domain.Review
	for _, r := range s.d.reviews {
		if r.TitleID == titleID {
			all = append(all, s.d.withAuthor(r))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].PubDate.Equal(all[j].PubDate) {
			return all[i].PubDate.Before(all[j].PubDate)
		}
		return all[i].ID < all[j].ID
	})
	return append([]*domain.Review{}, paginate(all, page)...), len(all), nil
}

func (s *MemoryReviewStore) CreateComment(_ context.Context, c *domain.Comment) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.reviews[c.ReviewID]; !ok {
		return ErrReviewNotFound
	}
	if _, ok := s.d.users[c.AuthorID]; !ok {
		return ErrUserNotFound
	}
	c.ID = s.d.nextID()
	c.Author = s.d.users[c.AuthorID].Username
	s.d.comments[c.ID] = *c
	return nil
}

func (s *MemoryReviewStore) GetComment(_ context.Context, reviewID, commentID int64) (*domain.Comment, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	c, ok := s.d.comments[commentID]
	if !ok || c.ReviewID != reviewID {
		return nil, ErrCommentNotFound
	}
	return s.d.commentWithAuthor(c), nil
}

func (s *MemoryReviewStore) UpdateComment(_ context.Context, c *domain.Comment) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	existing, ok := s.d.comments[c.ID]
	if !ok {
		return ErrCommentNotFound
	}
	existing.Text = c.Text
	s.d.comments[c.ID] = existing
	return nil
}

func (s *MemoryReviewStore) DeleteComment(_ context.Context, commentID int64) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.comments[commentID]; !ok {
		return ErrCommentNotFound
	}
	delete(s.d.comments, commentID)
	return nil
}

func (s *MemoryReviewStore) ListComments(_ context.Context, reviewID int64, page domain.Page) ([]*domain.Comment, int, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var all []*domain.Comment
	for _, c := range s.d.comments {
		if c.ReviewID == reviewID {
			all = append(all, s.d.commentWithAuthor(c))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].PubDate.Equal(all[j].PubDate) {
			return all[i].PubDate.Before(all[j].PubDate)
		}
		return all[i].ID < all[j].ID
	})
	return append([]*domain.Comment{}, paginate(all, page)...), len(all), nil
}
