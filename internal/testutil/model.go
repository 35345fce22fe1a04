package testutil

import (
	"github.com/roach88/navex/internal/model"
)

// BloggingModel returns the reference model used across engine tests.
//
//	Blog(Id, Name, Slug, Rating?, OwnerId?)      key Id, alternate key Slug
//	Person(Id, Name)                             key Id
//	Post(Id, Title, BlogId, AuthorId?)           key Id
//	BlogSettings(Id, BlogId, Theme)              key Id
//	Tag(Id, Label, BlogSlug?)                    key Id
//	Employee(Id, Name, ManagerId?)               key Id
//	Customer(Region, Number, Name)               key (Region, Number)
//	Order(Id, CustomerRegion, CustomerNumber)    key Id
//	Shipment(Id, OrderId?)                       key Id
//
// Relationships:
//
//	Post.Blog      -> Blog      required   (Blog.Posts collection)
//	Post.Author    -> Person    optional   (Person.Posts collection)
//	Blog.Owner     -> Person    optional   (no inverse)
//	BlogSettings.Blog -> Blog   required, unique (Blog.Settings reference)
//	Tag.Blog       -> Blog      optional, via alternate key Slug (Blog.Tags)
//	Employee.Manager -> Employee optional  (Employee.Reports collection)
//	Order.Customer -> Customer  required, composite key (Customer.Orders)
//	Shipment.Order -> Order     optional   (Order.Shipments collection)
func BloggingModel() *model.Model {
	b := model.NewBuilder()

	b.Entity("Blog").
		Property("Id", model.KindInt).
		Property("Name", model.KindString).
		Property("Slug", model.KindString).
		NullableProperty("Rating", model.KindInt).
		NullableProperty("OwnerId", model.KindInt).
		Key("Id").
		AlternateKey("Slug")

	b.Entity("Person").
		Property("Id", model.KindInt).
		Property("Name", model.KindString).
		Key("Id")

	b.Entity("Post").
		Property("Id", model.KindInt).
		Property("Title", model.KindString).
		Property("BlogId", model.KindInt).
		NullableProperty("AuthorId", model.KindInt).
		Key("Id")

	b.Entity("BlogSettings").
		Property("Id", model.KindInt).
		Property("BlogId", model.KindInt).
		Property("Theme", model.KindString).
		Key("Id")

	b.Entity("Tag").
		Property("Id", model.KindInt).
		Property("Label", model.KindString).
		NullableProperty("BlogSlug", model.KindString).
		Key("Id")

	b.Entity("Employee").
		Property("Id", model.KindInt).
		Property("Name", model.KindString).
		NullableProperty("ManagerId", model.KindInt).
		Key("Id")

	b.Entity("Customer").
		Property("Region", model.KindString).
		Property("Number", model.KindInt).
		Property("Name", model.KindString).
		Key("Region", "Number")

	b.Entity("Order").
		Property("Id", model.KindInt).
		Property("CustomerRegion", model.KindString).
		Property("CustomerNumber", model.KindInt).
		Key("Id")

	b.Entity("Shipment").
		Property("Id", model.KindInt).
		NullableProperty("OrderId", model.KindInt).
		Key("Id")

	b.Relationship(model.RelationshipDef{
		Name: "PostBlog", Dependent: "Post", Principal: "Blog",
		ForeignKey: []string{"BlogId"}, Required: true,
		Navigation: "Blog", Inverse: "Posts",
	})
	b.Relationship(model.RelationshipDef{
		Name: "PostAuthor", Dependent: "Post", Principal: "Person",
		ForeignKey: []string{"AuthorId"},
		Navigation: "Author", Inverse: "Posts",
	})
	b.Relationship(model.RelationshipDef{
		Name: "BlogOwner", Dependent: "Blog", Principal: "Person",
		ForeignKey: []string{"OwnerId"},
		Navigation: "Owner",
	})
	b.Relationship(model.RelationshipDef{
		Name: "BlogSettingsBlog", Dependent: "BlogSettings", Principal: "Blog",
		ForeignKey: []string{"BlogId"}, Required: true, Unique: true,
		Navigation: "Blog", Inverse: "Settings",
	})
	b.Relationship(model.RelationshipDef{
		Name: "TagBlog", Dependent: "Tag", Principal: "Blog",
		ForeignKey: []string{"BlogSlug"}, PrincipalKey: []string{"Slug"},
		Navigation: "Blog", Inverse: "Tags",
	})
	b.Relationship(model.RelationshipDef{
		Name: "EmployeeManager", Dependent: "Employee", Principal: "Employee",
		ForeignKey: []string{"ManagerId"},
		Navigation: "Manager", Inverse: "Reports",
	})
	b.Relationship(model.RelationshipDef{
		Name: "OrderCustomer", Dependent: "Order", Principal: "Customer",
		ForeignKey: []string{"CustomerRegion", "CustomerNumber"}, Required: true,
		Navigation: "Customer", Inverse: "Orders",
	})
	b.Relationship(model.RelationshipDef{
		Name: "ShipmentOrder", Dependent: "Shipment", Principal: "Order",
		ForeignKey: []string{"OrderId"},
		Navigation: "Order", Inverse: "Shipments",
	})

	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
